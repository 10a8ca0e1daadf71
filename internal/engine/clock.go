package engine

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock abstracts time.Now() and the refresh ticker to allow deterministic testing.
// clockwork.Clock satisfies it; tests drive a clockwork.FakeClock instead of waiting.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// NewRealClock returns the wall clock used in production.
func NewRealClock() Clock {
	return clockwork.NewRealClock()
}
