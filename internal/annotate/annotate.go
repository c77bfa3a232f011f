package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"platewatch/internal/domain/plate"
)

const (
	lineWidth  = 2
	labelPad   = 10
	labelInset = 5
)

var labelFace = basicfont.Face7x13

// Frame draws every reconciled vehicle of frame onto a copy of img: the
// vehicle box in white, the plate box and its label in the status color.
// Vehicles whose boxes are incomplete are skipped.
func Frame(img image.Image, frame plate.Frame, log zerolog.Logger) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	ids := make([]int, 0, len(frame))
	for id := range frame {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		v := frame[id]
		vehicleRect, err := v.Vehicle.BBox.Rect()
		if err != nil {
			log.Warn().Err(err).Int("vehicle_id", id).Msg("skipping vehicle with invalid bounding box")
			continue
		}
		plateRect, err := v.LicensePlate.BBox.Rect()
		if err != nil {
			log.Warn().Err(err).Int("vehicle_id", id).Msg("skipping plate with invalid bounding box")
			continue
		}

		c := plate.StatusColor(v.LicensePlate.Type)
		strokeRect(dst, vehicleRect, plate.ColorVehicle)
		strokeRect(dst, plateRect, c)
		drawLabel(dst, plateRect.Min, Label(v.LicensePlate), c)
	}
	return dst
}

// Label renders "Type (score)".
func Label(lp plate.LicensePlate) string {
	return fmt.Sprintf("%s (%.1f)", capitalize(string(lp.Type)), lp.BBoxScore)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+lineWidth), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-lineWidth, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+lineWidth, r.Max.Y), c)
	fill(dst, image.Rect(r.Max.X-lineWidth, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawLabel(dst draw.Image, anchor image.Point, text string, bg color.Color) {
	width := font.MeasureString(labelFace, text).Ceil()
	height := labelFace.Metrics().Height.Ceil()

	fill(dst, image.Rect(anchor.X, anchor.Y-height-labelPad, anchor.X+width, anchor.Y), bg)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: labelFace,
		Dot:  fixed.P(anchor.X, anchor.Y-labelInset),
	}
	d.DrawString(text)
}

// Save writes img to path, creating parent directories. The format follows
// the file extension.
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save frame %s: %w", path, err)
	}
	return nil
}

// FramePath names the annotated output of frame n inside dir.
func FramePath(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("output_frame_%d.jpg", n))
}

// UniqueFrameName is a file name for frame n that does not collide with
// other frames carrying the same number, as uploads do.
func UniqueFrameName(n int) string {
	return fmt.Sprintf("output_frame_%d_%s.jpg", n, uuid.NewString())
}
