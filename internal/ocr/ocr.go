package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
	"unicode"
)

var ErrOCRUnavailable = errors.New("ocr engine unavailable")

// Reader extracts plate text from a cropped plate image.
type Reader interface {
	Read(ctx context.Context, img image.Image) (text string, score float64, err error)
}

// CleanText keeps letters and numeric characters only.
func CleanText(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TextScore is a rough confidence heuristic: the mean character code
// scaled by 1/255, or 0 for empty text.
func TextScore(text string) float64 {
	if text == "" {
		return 0
	}
	var sum, n float64
	for _, r := range text {
		sum += float64(r)
		n++
	}
	return sum / n / 255
}
