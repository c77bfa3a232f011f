package plate

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidBoundingBox = errors.New("invalid bounding box")

type Status string

const (
	StatusRegistered Status = "registered"
	StatusMissing    Status = "missing"
	StatusEnquiry    Status = "enquiry"
)

// Record is one row of the registry source.
type Record struct {
	Plate  string `json:"plate"`
	Status Status `json:"status"`
}

// BBox holds x1, y1, x2, y2. Detection pipelines sometimes hand over
// truncated boxes, so the length is checked on use.
type BBox []float64

func (b BBox) Rect() (image.Rectangle, error) {
	if len(b) < 4 {
		return image.Rectangle{}, fmt.Errorf("%w: got %d coordinates", ErrInvalidBoundingBox, len(b))
	}
	return image.Rect(int(b[0]), int(b[1]), int(b[2]), int(b[3])), nil
}

func (b BBox) Clone() BBox {
	if b == nil {
		return nil
	}
	out := make(BBox, len(b))
	copy(out, b)
	return out
}

type Vehicle struct {
	BBox BBox `json:"bbox"`
}

type LicensePlate struct {
	Text      string  `json:"text"`
	BBox      BBox    `json:"bbox"`
	BBoxScore float64 `json:"bbox_score"`
	Type      Status  `json:"type,omitempty"`
}

type VehicleResult struct {
	Vehicle      Vehicle      `json:"vehicle"`
	LicensePlate LicensePlate `json:"license_plate"`
}

// Frame maps vehicle id to its result.
type Frame map[int]VehicleResult

// Results maps frame number to the vehicles detected in it.
type Results map[int]Frame

func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	for id, v := range f {
		v.Vehicle.BBox = v.Vehicle.BBox.Clone()
		v.LicensePlate.BBox = v.LicensePlate.BBox.Clone()
		out[id] = v
	}
	return out
}

func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	out := make(Results, len(r))
	for n, f := range r {
		out[n] = f.Clone()
	}
	return out
}

// Event is a reconciled plate detection as it is stored.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	Frame      int                    `json:"frame"`
	VehicleID  int                    `json:"vehicle_id"`
	Class      string                 `json:"class"`
	Plate      string                 `json:"plate"`
	Status     Status                 `json:"status"`
	Score      float64                `json:"score"`
	BBox       BBox                   `json:"bbox"`
	Source     string                 `json:"source,omitempty"`
	EventTime  time.Time              `json:"event_time"`
	RawPayload map[string]interface{} `json:"raw_payload,omitempty"`
}

type Lookup struct {
	Plate  string `json:"plate"`
	Status Status `json:"status"`
	Known  bool   `json:"known"`
}
