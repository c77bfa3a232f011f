package service

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sort"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"platewatch/internal/alert"
	"platewatch/internal/annotate"
	"platewatch/internal/detector"
	"platewatch/internal/domain/plate"
	"platewatch/internal/metrics"
	"platewatch/internal/ocr"
	"platewatch/internal/registry"
	"platewatch/internal/report"
	"platewatch/internal/utils"
)

type RegistrySource interface {
	Registry() *registry.Registry
}

type EventStore interface {
	CreateDetectionEvent(ctx context.Context, event *plate.Event) error
}

type DetectionOptions struct {
	// OutputDir receives annotated frames when SaveFrames is set.
	OutputDir  string
	SaveFrames bool
	// FrameName names the annotated file of frame n inside OutputDir.
	// Defaults to output_frame_<n>.jpg.
	FrameName func(n int) string
	// CSVPath is appended to by ProcessFiles; empty disables the report.
	CSVPath string
	Source  string
}

// DetectionService runs frames through detection, reconciliation and the
// downstream consumers. Frames are processed one at a time.
type DetectionService struct {
	detector detector.Detector
	ocr      ocr.Reader
	registry RegistrySource
	notifier *alert.Notifier
	store    EventStore
	metrics  *metrics.Metrics
	opts     DetectionOptions
	log      zerolog.Logger
	now      func() time.Time
}

// NewDetectionService builds the pipeline. reader, notifier and store are
// optional.
func NewDetectionService(
	det detector.Detector,
	reader ocr.Reader,
	reg RegistrySource,
	notifier *alert.Notifier,
	store EventStore,
	m *metrics.Metrics,
	opts DetectionOptions,
	log zerolog.Logger,
) *DetectionService {
	return &DetectionService{
		detector: det,
		ocr:      reader,
		registry: reg,
		notifier: notifier,
		store:    store,
		metrics:  m,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

type FrameReport struct {
	Frame      int            `json:"frame"`
	Vehicles   plate.Frame    `json:"vehicles"`
	Labels     map[int]string `json:"labels"`
	Rows       []report.Row   `json:"rows"`
	OutputPath string         `json:"output_path,omitempty"`
	Alerts     int            `json:"alerts"`
}

type RunSummary struct {
	Frames  int           `json:"frames"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Rows    []report.Row  `json:"rows"`
	Results plate.Results `json:"results"`
	Alerts  int           `json:"alerts"`
}

// ProcessFrame runs one frame through the pipeline. origin names where the
// frame came from (file path, upload name) and is kept with stored events.
func (s *DetectionService) ProcessFrame(ctx context.Context, n int, img image.Image, origin string) (*FrameReport, error) {
	start := time.Now()

	res, err := s.detector.Detect(ctx, img)
	if err != nil {
		s.metrics.FrameFailed()
		return nil, fmt.Errorf("detection failed for frame %d: %w", n, err)
	}

	frame := make(plate.Frame, len(res.Boxes))
	labels := make(map[int]string, len(res.Boxes))
	classIDs := make(map[int]int, len(res.Boxes))
	for i, box := range res.Boxes {
		bbox := plate.BBox{box.X1, box.Y1, box.X2, box.Y2}
		frame[i] = plate.VehicleResult{
			Vehicle: plate.Vehicle{BBox: bbox},
			LicensePlate: plate.LicensePlate{
				Text:      s.readText(ctx, img, n, i, bbox),
				BBox:      bbox.Clone(),
				BBoxScore: box.Score,
			},
		}
		labels[i] = res.Label(box.ClassID)
		classIDs[i] = box.ClassID
	}

	reconciled := Reconcile(plate.Results{n: frame}, s.registry.Registry())[n]

	out := &FrameReport{Frame: n, Vehicles: reconciled, Labels: labels}
	now := s.now()
	for _, id := range sortedIDs(reconciled) {
		v := reconciled[id]
		lp := v.LicensePlate
		out.Rows = append(out.Rows, report.Row{
			Frame:        n,
			Class:        labels[id],
			LicensePlate: lp.Text,
			Confidence:   lp.BBoxScore,
		})
		s.metrics.Detection(string(lp.Type))

		s.log.Debug().
			Int("frame", n).
			Int("vehicle_id", id).
			Str("plate", lp.Text).
			Str("status", string(lp.Type)).
			Float64("score", lp.BBoxScore).
			Msg("plate reconciled")

		if s.notifier.Notify(ctx, alert.Event{
			Plate: lp.Text, Status: lp.Type, Frame: n, VehicleID: id, Score: lp.BBoxScore, Time: now,
		}) {
			out.Alerts++
		}

		if s.store != nil {
			ev := &plate.Event{
				Frame:     n,
				VehicleID: id,
				Class:     labels[id],
				Plate:     lp.Text,
				Status:    lp.Type,
				Score:     lp.BBoxScore,
				BBox:      lp.BBox,
				Source:    s.opts.Source,
				EventTime: now,
				RawPayload: map[string]interface{}{
					"label":        labels[id],
					"class_id":     classIDs[id],
					"box_score":    lp.BBoxScore,
					"image_width":  img.Bounds().Dx(),
					"image_height": img.Bounds().Dy(),
				},
			}
			if origin != "" {
				ev.RawPayload["origin"] = origin
			}
			if err := s.store.CreateDetectionEvent(ctx, ev); err != nil {
				s.log.Error().Err(err).Int("frame", n).Str("plate", lp.Text).Msg("failed to store detection event")
			}
		}
	}

	if s.opts.SaveFrames && s.opts.OutputDir != "" {
		annotated := annotate.Frame(img, reconciled, s.log)
		path := s.framePath(n)
		if err := annotate.Save(annotated, path); err != nil {
			s.log.Error().Err(err).Int("frame", n).Msg("failed to save annotated frame")
		} else {
			out.OutputPath = path
			s.log.Info().Int("frame", n).Str("path", path).Msg("saved frame")
		}
	}

	s.metrics.FrameProcessed(time.Since(start))
	return out, nil
}

// ProcessFiles handles images in order, frame number = position in paths.
// Unreadable images and failed detections are skipped; collected rows are
// appended to the CSV report once all frames are done.
func (s *DetectionService) ProcessFiles(ctx context.Context, paths []string) (*RunSummary, error) {
	summary := &RunSummary{Results: plate.Results{}}

	for n, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		img, err := imaging.Open(path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Int("frame", n).Msg("skipping unreadable image")
			summary.Skipped++
			continue
		}

		fr, err := s.ProcessFrame(ctx, n, img, path)
		if err != nil {
			s.log.Error().Err(err).Str("path", path).Int("frame", n).Msg("failed to process frame")
			summary.Failed++
			continue
		}

		summary.Frames++
		summary.Rows = append(summary.Rows, fr.Rows...)
		summary.Results[n] = fr.Vehicles
		summary.Alerts += fr.Alerts
	}

	if s.opts.CSVPath != "" {
		if err := report.Append(s.opts.CSVPath, summary.Rows); err != nil {
			return summary, err
		}
		s.log.Info().Str("path", s.opts.CSVPath).Int("rows", len(summary.Rows)).Msg("detections written")
	}
	return summary, nil
}

func (s *DetectionService) readText(ctx context.Context, img image.Image, n, id int, bbox plate.BBox) string {
	placeholder := utils.PlaceholderText(bbox[0], bbox[1], bbox[2], bbox[3])
	if s.ocr == nil {
		return placeholder
	}

	rect, err := bbox.Rect()
	if err != nil {
		return placeholder
	}
	text, score, err := s.ocr.Read(ctx, imaging.Crop(img, rect))
	if err != nil {
		s.log.Warn().Err(err).Int("frame", n).Int("vehicle_id", id).Msg("ocr failed, using placeholder text")
		return placeholder
	}
	if text == "" {
		return placeholder
	}
	s.log.Debug().Int("frame", n).Int("vehicle_id", id).Str("text", text).Float64("text_score", score).Msg("plate text read")
	return text
}

func (s *DetectionService) framePath(n int) string {
	if s.opts.FrameName != nil {
		return filepath.Join(s.opts.OutputDir, s.opts.FrameName(n))
	}
	return annotate.FramePath(s.opts.OutputDir, n)
}

func sortedIDs(frame plate.Frame) []int {
	ids := make([]int, 0, len(frame))
	for id := range frame {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
