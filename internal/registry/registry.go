package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"platewatch/internal/domain/plate"
)

var ErrResourceUnavailable = errors.New("registry source unavailable")

// Registry maps a trimmed plate string to its lower-cased status.
// It is never mutated after construction; reloads build a new one.
type Registry struct {
	plates  map[string]plate.Status
	skipped int
}

func Empty() *Registry {
	return &Registry{plates: map[string]plate.Status{}}
}

// Load reads "plate,status" rows. Rows with any other field count are
// skipped, later rows overwrite earlier ones for the same plate, and no
// header row is recognised.
func Load(r io.Reader) (*Registry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	reg := Empty()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				reg.skipped++
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
		}
		if len(row) != 2 {
			reg.skipped++
			continue
		}
		reg.put(row[0], row[1])
	}
	return reg, nil
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	defer f.Close()
	return Load(f)
}

// FromRecords applies the same normalization as Load to records coming
// from another store.
func FromRecords(records []plate.Record) *Registry {
	reg := Empty()
	for _, rec := range records {
		reg.put(rec.Plate, string(rec.Status))
	}
	return reg
}

func (r *Registry) put(rawPlate, rawStatus string) {
	r.plates[strings.TrimSpace(rawPlate)] = plate.Status(strings.ToLower(strings.TrimSpace(rawStatus)))
}

// Lookup is an exact, case-sensitive match on text.
func (r *Registry) Lookup(text string) (plate.Status, bool) {
	if r == nil {
		return "", false
	}
	s, ok := r.plates[text]
	return s, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.plates)
}

// Skipped reports how many malformed rows Load ignored.
func (r *Registry) Skipped() int {
	if r == nil {
		return 0
	}
	return r.skipped
}

func (r *Registry) Records() []plate.Record {
	if r == nil {
		return nil
	}
	out := make([]plate.Record, 0, len(r.plates))
	for p, s := range r.plates {
		out = append(out, plate.Record{Plate: p, Status: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out
}

// Holder publishes the current registry snapshot to concurrent readers.
type Holder struct {
	current atomic.Pointer[Registry]
}

func NewHolder(reg *Registry) *Holder {
	h := &Holder{}
	h.Store(reg)
	return h
}

func (h *Holder) Load() *Registry {
	if reg := h.current.Load(); reg != nil {
		return reg
	}
	return Empty()
}

func (h *Holder) Store(reg *Registry) {
	if reg == nil {
		reg = Empty()
	}
	h.current.Store(reg)
}
