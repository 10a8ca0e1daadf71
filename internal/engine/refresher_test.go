package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/life-progress/internal/config"
	"github.com/tartampluch/life-progress/internal/engine"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockPublisher records published snapshots using `testify/mock`.
type MockPublisher struct {
	mock.Mock
}

// Publish implements the engine.Publisher interface.
func (m *MockPublisher) Publish(s engine.Snapshot) {
	m.Called(s)
}

// channelPublisher forwards every snapshot to a buffered channel.
func channelPublisher(buf int) (engine.Publisher, <-chan engine.Snapshot) {
	ch := make(chan engine.Snapshot, buf)
	return engine.PublisherFunc(func(s engine.Snapshot) { ch <- s }), ch
}

func receive(t *testing.T, ch <-chan engine.Snapshot) engine.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published snapshot")
		return engine.Snapshot{}
	}
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

// TestRefresher_ThreeTicks simulates three 60-second ticks and expects the day
// fraction to grow on each one.
func TestRefresher_ThreeTicks(t *testing.T) {
	start := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(start)
	pub, published := channelPublisher(8)

	r := engine.NewRefresher(fc, engine.NewCalculator(time.UTC), pub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := r.Start(ctx)
	defer stop()

	// Activation publishes before the first tick.
	prev := receive(t, published)
	assert.Equal(t, start, prev.At)

	require.NoError(t, fc.BlockUntilContext(ctx, 1), "refresher must arm its ticker")

	for i := 1; i <= 3; i++ {
		fc.Advance(config.RefreshInterval)

		got := receive(t, published)
		assert.Equal(t, start.Add(time.Duration(i)*config.RefreshInterval), got.At)
		assert.Greater(t, got.Day, prev.Day, "tick %d must advance the day ring", i)
		assert.Equal(t, prev.Year, got.Year, "year is unchanged within the same day")
		prev = got
	}

	current, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, prev, current)
}

// TestRefresher_MidnightResets checks the day ring resets when a tick crosses midnight.
func TestRefresher_MidnightResets(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2023, 12, 31, 23, 59, 30, 0, time.UTC))
	pub, published := channelPublisher(4)
	r := engine.NewRefresher(fc, engine.NewCalculator(time.UTC), pub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stop := r.Start(ctx)
	defer stop()

	before := receive(t, published)
	assert.InDelta(t, 86370.0/86400, before.Day, 1e-12)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(config.RefreshInterval)

	after := receive(t, published)
	assert.InDelta(t, 30.0/86400, after.Day, 1e-12)
	assert.Equal(t, 0.0, after.Month)
	assert.Equal(t, 0.0, after.Year)
}

// TestRefresher_RunStopsOnCancel verifies teardown returns the context error
// after the activation publish.
func TestRefresher_RunStopsOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	pub := new(MockPublisher)
	pub.On("Publish", mock.AnythingOfType("engine.Snapshot")).Once()

	r := engine.NewRefresher(fc, engine.NewCalculator(time.UTC), pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	pub.AssertExpectations(t)
}

// TestRefresher_StopHandle verifies the stop function tears the ticker down.
func TestRefresher_StopHandle(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC))
	pub, published := channelPublisher(4)
	r := engine.NewRefresher(fc, engine.NewCalculator(time.UTC), pub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := r.Start(ctx)
	receive(t, published)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	stop()

	// A stopped ticker is no longer a waiter on the fake clock.
	require.NoError(t, fc.BlockUntilContext(ctx, 0))
	fc.Advance(10 * config.RefreshInterval)

	select {
	case s := <-published:
		t.Fatalf("unexpected publish after stop: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRefresher_WiringErrors(t *testing.T) {
	fc := clockwork.NewFakeClock()

	err := (&engine.Refresher{Clock: fc}).Run(context.Background())
	assert.EqualError(t, err, config.ErrCalculatorNil)

	err = (&engine.Refresher{Calculator: engine.NewCalculator(time.UTC)}).Run(context.Background())
	assert.EqualError(t, err, config.ErrClockNil)

	_, ok := (&engine.Refresher{}).Current()
	assert.False(t, ok, "no snapshot before the first publish")
}

// TestRefresher_DefaultInterval falls back to one minute when unset.
func TestRefresher_DefaultInterval(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(start)
	pub, published := channelPublisher(4)
	r := &engine.Refresher{Clock: fc, Calculator: engine.NewCalculator(time.UTC), Publishers: []engine.Publisher{pub}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stop := r.Start(ctx)
	defer stop()

	receive(t, published)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	fc.Advance(config.RefreshInterval - time.Second)
	select {
	case s := <-published:
		t.Fatalf("published before a full interval elapsed: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}

	fc.Advance(time.Second)
	got := receive(t, published)
	assert.Equal(t, start.Add(config.RefreshInterval), got.At)
}
