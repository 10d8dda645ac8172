package clock

import "time"

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time

	// After returns a channel that receives the current time once d has elapsed
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f in its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on the returned Ticker's channel every d
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call
type Timer struct {
	stopFunc func() bool
}

// NewTimer wraps a stop function as a Timer. Clock implementations use it.
func NewTimer(stop func() bool) *Timer {
	return &Timer{stopFunc: stop}
}

// Stop prevents the call from running. It returns false if the call has
// already run or started running, or the timer was already stopped.
func (t *Timer) Stop() bool {
	return t.stopFunc()
}

// Ticker delivers periodic ticks on C
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// NewTicker wraps a tick channel and stop function as a Ticker. Clock implementations use it.
func NewTicker(c <-chan time.Time, stop func()) *Ticker {
	return &Ticker{C: c, stopFunc: stop}
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() {
	t.stopFunc()
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Ensure RealClock implements Clock
var _ Clock = (*RealClock)(nil)

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// After waits for d on the system clock
func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// AfterFunc schedules f on the system clock
func (c *RealClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return NewTimer(t.Stop)
}

// NewTicker creates a system ticker
func (c *RealClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return NewTicker(t.C, t.Stop)
}
