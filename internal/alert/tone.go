package alert

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	toneSampleRate = 44100
	toneBitDepth   = 16
	toneFrequency  = 1000
	toneDuration   = 500 * time.Millisecond
	toneAmplitude  = 0.5
)

// Tone renders a 1000 Hz beep to a WAV file on first use and plays it
// with an external player command when one is set.
type Tone struct {
	path   string
	player string

	once      sync.Once
	renderErr error
}

func NewTone(path, player string) *Tone {
	return &Tone{path: path, player: player}
}

func (t *Tone) Name() string { return "tone" }

func (t *Tone) Alert(ctx context.Context, _ Event) error {
	t.once.Do(func() {
		t.renderErr = WriteTone(t.path, toneFrequency, toneDuration)
	})
	if t.renderErr != nil {
		return t.renderErr
	}
	if t.player == "" {
		return nil
	}
	if err := exec.CommandContext(ctx, t.player, t.path).Run(); err != nil {
		return fmt.Errorf("failed to play alert tone: %w", err)
	}
	return nil
}

// WriteTone writes a mono 16-bit sine tone to path.
func WriteTone(path string, frequency float64, d time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	n := int(d.Seconds() * toneSampleRate)
	peak := toneAmplitude * float64(math.MaxInt16)
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(peak * math.Sin(2*math.Pi*frequency*float64(i)/toneSampleRate))
	}

	enc := wav.NewEncoder(out, toneSampleRate, toneBitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: toneSampleRate, NumChannels: 1},
		SourceBitDepth: toneBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	return enc.Close()
}
