package engine

import (
	"fmt"
	"time"

	"github.com/tartampluch/life-progress/internal/config"
)

// Period names used in PeriodError and logs.
const (
	PeriodYear  = "year"
	PeriodMonth = "month"
	PeriodDay   = "day"
)

const day = 24 * time.Hour

// PeriodError reports a period whose boundaries the calendar could not resolve
// into a usable span. The calculator panics with it.
type PeriodError struct {
	Period  string
	Elapsed float64
	Total   float64
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("%s: %s (elapsed=%g, total=%g)", config.ErrPeriodUnresolved, e.Period, e.Elapsed, e.Total)
}

// Calculator computes progress snapshots in a fixed location.
// A nil Location means the location carried by the instant passed in.
type Calculator struct {
	Location *time.Location
}

// NewCalculator creates a Calculator bound to loc.
func NewCalculator(loc *time.Location) *Calculator {
	return &Calculator{Location: loc}
}

// SnapshotAt computes all three fractions for the instant t.
func (c *Calculator) SnapshotAt(t time.Time) Snapshot {
	if c.Location != nil {
		t = t.In(c.Location)
	}
	return Snapshot{
		Year:  YearFraction(t),
		Month: MonthFraction(t),
		Day:   DayFraction(t),
		At:    t,
	}
}

// YearFraction returns the whole calendar days elapsed since January 1st
// divided by the number of days in that year (365 or 366).
func YearFraction(now time.Time) float64 {
	start := civilDate(now.Year(), time.January, 1)
	end := civilDate(now.Year()+1, time.January, 1)
	return fraction(PeriodYear, float64(civilDays(start, now)), float64(civilDays(start, end)))
}

// MonthFraction returns the whole calendar days elapsed since the first of
// the month divided by the number of days in that month (28 to 31).
func MonthFraction(now time.Time) float64 {
	y, m, _ := now.Date()
	start := civilDate(y, m, 1)
	// time.Date normalizes month 13 into January of the following year.
	end := civilDate(y, m+1, 1)
	return fraction(PeriodMonth, float64(civilDays(start, now)), float64(civilDays(start, end)))
}

// DayFraction returns the seconds elapsed since the start of the local day
// divided by the seconds until the start of the next one. The divisor is
// measured, so 23 and 25 hour daylight-saving days are handled.
func DayFraction(now time.Time) float64 {
	loc := now.Location()
	y, m, d := now.Date()
	start := startOfDay(y, m, d, loc)
	end := startOfDay(y, m, d+1, loc)
	return fraction(PeriodDay, now.Sub(start).Seconds(), end.Sub(start).Seconds())
}

// startOfDay returns the first instant of the calendar date (y, m, d) in loc.
// That is local midnight unless a zone transition skips or repeats it.
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	target := civilDate(y, m, d)

	ty, tm, td := t.Date()
	if civilDate(ty, tm, td).Before(target) {
		// Midnight falls in a gap and resolved to the previous evening.
		// The date begins at the transition.
		_, end := t.ZoneBounds()
		return end
	}

	// Midnight repeats: the earlier zone may already be on the target date.
	if zoneStart, _ := t.ZoneBounds(); !zoneStart.IsZero() {
		prev := zoneStart.Add(-time.Nanosecond)
		py, pm, pd := prev.Date()
		if civilDate(py, pm, pd).Equal(target) {
			_, offset := prev.Zone()
			return time.Date(y, m, d, 0, 0, 0, 0, time.FixedZone("", offset)).In(loc)
		}
	}
	return t
}

// civilDate is the zone-free date (y, m, d), normalized by time.Date.
func civilDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// civilDays counts calendar days between the dates of from and to, ignoring
// wall-clock offsets so a DST shift never adds or removes a day.
func civilDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	return int(civilDate(ty, tm, td).Sub(civilDate(fy, fm, fd)) / day)
}

func fraction(period string, elapsed, total float64) float64 {
	if total <= 0 || elapsed < 0 || elapsed > total {
		panic(&PeriodError{Period: period, Elapsed: elapsed, Total: total})
	}
	return elapsed / total
}
