package gallery

import (
	"fmt"
	"math"
)

// FormatWatchTime renders cumulative watch seconds as a compact badge
// string: "45s", "3m 10s", "2h 5m". Zero or negative input renders as
// an empty string (no badge).
func FormatWatchTime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return ""
	}

	total := int(math.Round(seconds))
	if total < 1 {
		total = 1
	}

	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
