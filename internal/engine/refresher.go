package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tartampluch/life-progress/internal/config"
)

// Publisher receives every snapshot the Refresher computes.
// Publish is called from the refresher goroutine and must not block for long.
type Publisher interface {
	Publish(s Snapshot)
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(s Snapshot)

// Publish calls f(s).
func (f PublisherFunc) Publish(s Snapshot) {
	f(s)
}

// Refresher recomputes the progress snapshot on activation and then once per
// Interval, handing each result to its publishers.
type Refresher struct {
	Clock      Clock
	Calculator *Calculator
	Interval   time.Duration // Defaults to config.RefreshInterval when zero.
	Publishers []Publisher

	// current holds the last published snapshot. It is replaced wholesale.
	current atomic.Pointer[Snapshot]
}

// NewRefresher wires a Refresher with the default interval.
func NewRefresher(clock Clock, calc *Calculator, publishers ...Publisher) *Refresher {
	return &Refresher{
		Clock:      clock,
		Calculator: calc,
		Interval:   config.RefreshInterval,
		Publishers: publishers,
	}
}

// Run publishes one snapshot immediately, then one per tick, until ctx is done.
// It always returns a non-nil error: ctx.Err() on teardown, or a wiring error.
func (r *Refresher) Run(ctx context.Context) error {
	if r.Calculator == nil {
		return errors.New(config.ErrCalculatorNil)
	}
	if r.Clock == nil {
		return errors.New(config.ErrClockNil)
	}

	interval := r.Interval
	if interval <= 0 {
		interval = config.RefreshInterval
	}

	log := slog.With(config.LogKeyComponent, config.CompRefresher)

	r.refresh(ctx)

	ticker := r.Clock.NewTicker(interval)
	defer ticker.Stop()

	log.InfoContext(ctx, config.MsgRefresherStart, config.LogKeyInterval, interval)

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, config.MsgRefresherStop)
			return ctx.Err()

		case <-ticker.Chan():
			r.refresh(ctx)
		}
	}
}

// Start runs the refresher in the background and returns its teardown handle.
// Calling stop cancels the schedule and waits for the goroutine to exit.
func (r *Refresher) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error(config.ErrAppFailed,
				config.LogKeyComponent, config.CompRefresher,
				config.LogKeyError, err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Current returns the last published snapshot, if any.
func (r *Refresher) Current() (Snapshot, bool) {
	s := r.current.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// refresh recomputes every fraction, even those whose period cannot have changed.
func (r *Refresher) refresh(ctx context.Context) {
	snap := r.Calculator.SnapshotAt(r.Clock.Now())
	r.current.Store(&snap)

	slog.DebugContext(ctx, config.MsgSnapshot,
		config.LogKeyComponent, config.CompRefresher,
		config.LogKeyYear, snap.Year,
		config.LogKeyMonth, snap.Month,
		config.LogKeyDay, snap.Day,
		config.LogKeyAt, snap.At.Format(time.RFC3339),
	)

	for _, p := range r.Publishers {
		p.Publish(snap)
	}
}
