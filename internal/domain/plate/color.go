package plate

import "image/color"

var (
	ColorRegistered = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorMissing    = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	ColorEnquiry    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorVehicle    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// StatusColor is the only place statuses map to display colors.
// Unknown statuses are drawn like enquiries.
func StatusColor(s Status) color.RGBA {
	switch s {
	case StatusRegistered:
		return ColorRegistered
	case StatusMissing:
		return ColorMissing
	default:
		return ColorEnquiry
	}
}
