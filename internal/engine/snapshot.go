package engine

import (
	"math"
	"time"

	"github.com/tartampluch/life-progress/internal/config"
)

// Snapshot is the progress triple published to the display on every refresh.
// It is recreated on each tick and never mutated once published.
type Snapshot struct {
	// Year is the fraction of the current calendar year elapsed, in [0,1].
	Year float64 `json:"year"`

	// Month is the fraction of the current calendar month elapsed, in [0,1].
	Month float64 `json:"month"`

	// Day is the fraction of the current calendar day elapsed, in [0,1].
	Day float64 `json:"day"`

	// At is the instant the snapshot was computed for, in the calculator's location.
	At time.Time `json:"at"`
}

// SweepDegrees maps a fraction linearly onto a ring arc: 0.0 -> 0°, 1.0 -> 360°.
// Values outside [0,1] are clamped so a drawing never wraps.
func SweepDegrees(fraction float64) float64 {
	return Clamp(fraction) * config.FullSweepDegrees
}

// Clamp bounds a fraction to [0,1]. NaN maps to 0.
func Clamp(fraction float64) float64 {
	if math.IsNaN(fraction) || fraction < 0 {
		return 0
	}
	return math.Min(fraction, 1)
}
