package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
)

var ErrDetectorUnavailable = errors.New("detector unavailable")

type Box struct {
	X1      float64 `json:"x1"`
	Y1      float64 `json:"y1"`
	X2      float64 `json:"x2"`
	Y2      float64 `json:"y2"`
	Score   float64 `json:"score"`
	ClassID int     `json:"class_id"`
}

type Result struct {
	Boxes []Box
	Names map[int]string
}

func (r *Result) Label(classID int) string {
	if name, ok := r.Names[classID]; ok {
		return name
	}
	return strconv.Itoa(classID)
}

// Detector finds license plates in a frame.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*Result, error)
}

// HTTPDetector talks to an inference server that accepts a JPEG body and
// answers with {"names": {...}, "boxes": [[x1,y1,x2,y2,score,class_id], ...]}.
type HTTPDetector struct {
	url        string
	client     *http.Client
	confidence float64
}

func NewHTTPDetector(url string, timeout time.Duration, confidence float64, client *http.Client) *HTTPDetector {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPDetector{url: url, client: client, confidence: confidence}
}

type detectResponse struct {
	Names map[string]string `json:"names"`
	Boxes [][]float64       `json:"boxes"`
}

func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, img, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrDetectorUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var payload detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode detector response: %w", err)
	}

	return d.toResult(payload), nil
}

func (d *HTTPDetector) toResult(payload detectResponse) *Result {
	res := &Result{Names: make(map[int]string, len(payload.Names))}
	for k, name := range payload.Names {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		res.Names[id] = name
	}

	for _, row := range payload.Boxes {
		if len(row) < 6 {
			continue
		}
		box := Box{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3], Score: row[4], ClassID: int(row[5])}
		if box.Score < d.confidence {
			continue
		}
		res.Boxes = append(res.Boxes, box)
	}
	return res
}
