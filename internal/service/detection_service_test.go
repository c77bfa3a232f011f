package service

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platewatch/internal/alert"
	"platewatch/internal/annotate"
	"platewatch/internal/detector"
	"platewatch/internal/domain/plate"
	"platewatch/internal/metrics"
	"platewatch/internal/registry"
	"platewatch/internal/report"
)

type fakeDetector struct {
	result *detector.Result
	err    error
	calls  int
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image) (*detector.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) Read(_ context.Context, img image.Image) (string, float64, error) {
	if img.Bounds().Empty() {
		return "", 0, errors.New("empty crop")
	}
	return f.text, 0.5, f.err
}

type staticRegistry struct {
	reg *registry.Registry
}

func (s staticRegistry) Registry() *registry.Registry { return s.reg }

type memoryStore struct {
	mu     sync.Mutex
	events []plate.Event
}

func (m *memoryStore) CreateDetectionEvent(_ context.Context, ev *plate.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

type countingAlerter struct {
	events []alert.Event
}

func (c *countingAlerter) Name() string { return "counting" }

func (c *countingAlerter) Alert(_ context.Context, ev alert.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func twoBoxes() *detector.Result {
	return &detector.Result{
		Names: map[int]string{0: "license-plate"},
		Boxes: []detector.Box{
			{X1: 10, Y1: 20, X2: 110, Y2: 60, Score: 0.91, ClassID: 0},
			{X1: 120, Y1: 20, X2: 180, Y2: 50, Score: 0.456, ClassID: 0},
		},
	}
}

func newTestPipeline(t *testing.T, det detector.Detector, reader *fakeOCR, reg *registry.Registry, opts DetectionOptions) (*DetectionService, *countingAlerter, *memoryStore) {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	alerter := &countingAlerter{}
	notifier := alert.NewNotifier(time.Hour, m, zerolog.Nop(), alerter)
	store := &memoryStore{}

	svc := NewDetectionService(det, nil, staticRegistry{reg: reg}, notifier, store, m, opts, zerolog.Nop())
	if reader != nil {
		svc.ocr = *reader
	}
	return svc, alerter, store
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func TestProcessFramePlaceholderText(t *testing.T) {
	reg := registry.FromRecords([]plate.Record{{Plate: "10_20_110_60", Status: plate.StatusRegistered}})
	svc, alerter, store := newTestPipeline(t, &fakeDetector{result: twoBoxes()}, nil, reg, DetectionOptions{Source: "test"})

	fr, err := svc.ProcessFrame(context.Background(), 4, testImage(), "")
	require.NoError(t, err)

	require.Len(t, fr.Vehicles, 2)
	assert.Equal(t, "10_20_110_60", fr.Vehicles[0].LicensePlate.Text)
	assert.Equal(t, plate.StatusRegistered, fr.Vehicles[0].LicensePlate.Type)
	assert.Equal(t, "120_20_180_50", fr.Vehicles[1].LicensePlate.Text)
	assert.Equal(t, plate.StatusEnquiry, fr.Vehicles[1].LicensePlate.Type)

	assert.Equal(t, []report.Row{
		{Frame: 4, Class: "license-plate", LicensePlate: "10_20_110_60", Confidence: 0.91},
		{Frame: 4, Class: "license-plate", LicensePlate: "120_20_180_50", Confidence: 0.456},
	}, fr.Rows)

	assert.Equal(t, 1, fr.Alerts)
	require.Len(t, alerter.events, 1)
	assert.Equal(t, "120_20_180_50", alerter.events[0].Plate)

	require.Len(t, store.events, 2)
	assert.Equal(t, "test", store.events[0].Source)
	assert.Empty(t, fr.OutputPath)
}

func TestProcessFrameStoresFrameContext(t *testing.T) {
	svc, _, store := newTestPipeline(t, &fakeDetector{result: twoBoxes()}, nil, registry.Empty(), DetectionOptions{})

	_, err := svc.ProcessFrame(context.Background(), 1, testImage(), "cam/gate.jpg")
	require.NoError(t, err)

	require.Len(t, store.events, 2)
	payload := store.events[1].RawPayload
	assert.Equal(t, "cam/gate.jpg", payload["origin"])
	assert.Equal(t, "license-plate", payload["label"])
	assert.Equal(t, 0, payload["class_id"])
	assert.Equal(t, 0.456, payload["box_score"])
	assert.Equal(t, 200, payload["image_width"])
	assert.Equal(t, 100, payload["image_height"])

	_, err = svc.ProcessFrame(context.Background(), 2, testImage(), "")
	require.NoError(t, err)
	assert.NotContains(t, store.events[2].RawPayload, "origin")
}

func TestProcessFrameUsesOCR(t *testing.T) {
	reg := registry.FromRecords([]plate.Record{{Plate: "ABC123", Status: plate.StatusMissing}})
	svc, alerter, _ := newTestPipeline(t, &fakeDetector{result: twoBoxes()}, &fakeOCR{text: "ABC123"}, reg, DetectionOptions{})

	fr, err := svc.ProcessFrame(context.Background(), 0, testImage(), "")
	require.NoError(t, err)

	for _, v := range fr.Vehicles {
		assert.Equal(t, "ABC123", v.LicensePlate.Text)
		assert.Equal(t, plate.StatusMissing, v.LicensePlate.Type)
	}
	assert.Empty(t, alerter.events)
}

func TestProcessFrameOCRFailureFallsBack(t *testing.T) {
	svc, _, _ := newTestPipeline(t, &fakeDetector{result: twoBoxes()}, &fakeOCR{err: errors.New("engine down")}, registry.Empty(), DetectionOptions{})

	fr, err := svc.ProcessFrame(context.Background(), 0, testImage(), "")
	require.NoError(t, err)
	assert.Equal(t, "10_20_110_60", fr.Vehicles[0].LicensePlate.Text)
}

func TestProcessFrameDetectorError(t *testing.T) {
	svc, _, _ := newTestPipeline(t, &fakeDetector{err: detector.ErrDetectorUnavailable}, nil, registry.Empty(), DetectionOptions{})

	_, err := svc.ProcessFrame(context.Background(), 0, testImage(), "")
	require.ErrorIs(t, err, detector.ErrDetectorUnavailable)
}

func TestProcessFrameSavesAnnotatedFrame(t *testing.T) {
	dir := t.TempDir()
	svc, _, _ := newTestPipeline(t, &fakeDetector{result: twoBoxes()}, nil, registry.Empty(), DetectionOptions{OutputDir: dir, SaveFrames: true})

	fr, err := svc.ProcessFrame(context.Background(), 2, testImage(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "output_frame_2.jpg"), fr.OutputPath)
	_, err = os.Stat(fr.OutputPath)
	require.NoError(t, err)
}

func TestProcessFrameUniqueFrameNames(t *testing.T) {
	dir := t.TempDir()
	det := &fakeDetector{result: twoBoxes()}
	svc, _, _ := newTestPipeline(t, det, nil, registry.Empty(), DetectionOptions{
		OutputDir:  dir,
		SaveFrames: true,
		FrameName:  annotate.UniqueFrameName,
	})

	first, err := svc.ProcessFrame(context.Background(), 0, testImage(), "a.jpg")
	require.NoError(t, err)
	det.result = &detector.Result{}
	second, err := svc.ProcessFrame(context.Background(), 0, testImage(), "b.jpg")
	require.NoError(t, err)

	require.NotEqual(t, first.OutputPath, second.OutputPath)
	assert.Equal(t, dir, filepath.Dir(first.OutputPath))

	// the annotated first frame is not replaced by the empty second one
	firstData, err := os.ReadFile(first.OutputPath)
	require.NoError(t, err)
	secondData, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.NotEqual(t, firstData, secondData)
}

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.png")
	require.NoError(t, imaging.Save(testImage(), good))
	bad := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	csvPath := filepath.Join(dir, "detections.csv")

	det := &fakeDetector{result: twoBoxes()}
	svc, alerter, _ := newTestPipeline(t, det, nil, registry.Empty(), DetectionOptions{CSVPath: csvPath})

	summary, err := svc.ProcessFiles(context.Background(), []string{good, bad, good})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, summary.Rows, 4)
	assert.Contains(t, summary.Results, 0)
	assert.Contains(t, summary.Results, 2)
	assert.NotContains(t, summary.Results, 1)
	assert.Equal(t, 2, det.calls)

	// same two enquiry plates in both frames: cooldown alerts each once
	assert.Equal(t, 2, summary.Alerts)
	assert.Len(t, alerter.events, 2)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Frame,Class,License Plate,Confidence\n")
	assert.Contains(t, string(data), "2,license-plate,120_20_180_50,0.46\n")
}

func TestProcessFilesCancelled(t *testing.T) {
	svc, _, _ := newTestPipeline(t, &fakeDetector{result: twoBoxes()}, nil, registry.Empty(), DetectionOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessFiles(ctx, []string{"a.png"})
	require.ErrorIs(t, err, context.Canceled)
}
