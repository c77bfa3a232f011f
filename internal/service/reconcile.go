package service

import (
	"platewatch/internal/domain/plate"
	"platewatch/internal/registry"
)

// Reconcile assigns a status to every detected plate and returns the
// result as a new structure; the input is left untouched. Plate text is
// matched verbatim, so OCR output with stray whitespace or a different case
// than the registry entry falls through to enquiry.
func Reconcile(results plate.Results, reg *registry.Registry) plate.Results {
	out := results.Clone()
	for _, frame := range out {
		ReconcileFrame(frame, reg)
	}
	return out
}

// ReconcileFrame sets the type of every plate in frame, in place.
func ReconcileFrame(frame plate.Frame, reg *registry.Registry) {
	for id, v := range frame {
		v.LicensePlate.Type = statusFor(reg, v.LicensePlate.Text)
		frame[id] = v
	}
}

func statusFor(reg *registry.Registry, text string) plate.Status {
	if status, ok := reg.Lookup(text); ok {
		return status
	}
	return plate.StatusEnquiry
}
