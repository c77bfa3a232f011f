//go:build !tesseract

package ocr

import (
	"context"
	"image"
)

type Tesseract struct{}

// NewTesseract fails when the binary was built without the tesseract tag.
func NewTesseract(string) (*Tesseract, error) {
	return nil, ErrOCRUnavailable
}

func (t *Tesseract) Read(context.Context, image.Image) (string, float64, error) {
	return "", 0, ErrOCRUnavailable
}

func (t *Tesseract) Close() error {
	return nil
}
