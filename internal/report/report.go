package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

var Header = []string{"Frame", "Class", "License Plate", "Confidence"}

// Row is one detected object of one frame.
type Row struct {
	Frame        int     `json:"frame"`
	Class        string  `json:"class"`
	LicensePlate string  `json:"license_plate"`
	Confidence   float64 `json:"confidence"`
}

func (r Row) Record() []string {
	return []string{
		strconv.Itoa(r.Frame),
		r.Class,
		r.LicensePlate,
		strconv.FormatFloat(r.Confidence, 'f', 2, 64),
	}
}

// Append adds rows to the CSV file at path. The header is written only when
// the file did not exist before this call.
func Append(path string, rows []Row) error {
	_, err := os.Stat(path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat report %s: %w", path, err)
	}

	if dir := filepath.Dir(path); !exists && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write report header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return f.Close()
}
