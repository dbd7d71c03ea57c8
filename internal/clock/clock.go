package clock

import "time"

// Clock is the subset of the time package used by heartline services.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a Timer that fires once after d. Callers that may
	// abandon the wait should Stop the timer.
	NewTimer(d time.Duration) *Timer
}

// Timer is a single scheduled event.
type Timer struct {
	// C receives the fire time. Buffered with capacity 1.
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing. It reports whether the call stopped
// an active timer.
func (t *Timer) Stop() bool { return t.stop() }
