package utils

import (
	"fmt"
	"strings"
)

// NormalizePlate приводит номер к единому формату для поиска:
// без пробелов и дефисов, в верхнем регистре.
func NormalizePlate(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ToUpper(normalized)
	return normalized
}

// PlaceholderText builds the position-derived plate text used when no OCR
// reader is configured.
func PlaceholderText(x1, y1, x2, y2 float64) string {
	return fmt.Sprintf("%d_%d_%d_%d", int(x1), int(y1), int(x2), int(y2))
}
