//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract prepares a client that treats each crop as a single word.
func NewTesseract(language string) (*Tesseract, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_WORD); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	return &Tesseract{client: client}, nil
}

func (t *Tesseract) Read(ctx context.Context, img image.Image) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", 0, fmt.Errorf("failed to encode plate crop: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("failed to load plate crop: %w", err)
	}
	raw, err := t.client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("failed to read plate text: %w", err)
	}

	text := CleanText(raw)
	return text, TextScore(text), nil
}

func (t *Tesseract) Close() error {
	return t.client.Close()
}
