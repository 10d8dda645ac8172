package display

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/metrics"
)

// DefaultRefreshInterval is the minimum spacing between non-forced refreshes
const DefaultRefreshInterval = 2 * time.Second

// PushFunc pushes the current roster state to the display
type PushFunc func(ctx context.Context) error

// Throttle rate-limits display refreshes. Forced refreshes always push;
// others push only when the interval has elapsed since the last push and
// are dropped otherwise. The lock covers only that decision, never the
// push itself.
type Throttle struct {
	clock    clock.Clock
	interval time.Duration
	push     PushFunc
	logger   *slog.Logger

	mu            sync.Mutex
	lastRefreshAt time.Time
	dropped       int
}

// NewThrottle creates a throttle around push
func NewThrottle(clk clock.Clock, interval time.Duration, push PushFunc, logger *slog.Logger) *Throttle {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Throttle{
		clock:    clk,
		interval: interval,
		push:     push,
		logger:   logger.With(slog.String("component", "display-throttle")),
	}
}

// RequestRefresh asks for a display refresh. Errors from the push are
// logged and never returned.
func (t *Throttle) RequestRefresh(ctx context.Context, force bool) {
	if !t.admit(force) {
		metrics.RefreshesDropped.Inc()
		return
	}

	if err := t.push(ctx); err != nil {
		metrics.RefreshErrors.Inc()
		t.logger.Warn("display refresh failed",
			slog.Bool("forced", force),
			slog.Any("error", err),
		)
		return
	}
	metrics.RefreshesPushed.Inc()
}

func (t *Throttle) admit(force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if !force && !t.lastRefreshAt.IsZero() && now.Sub(t.lastRefreshAt) < t.interval {
		t.dropped++
		return false
	}
	t.lastRefreshAt = now
	return true
}

// Reset forgets the last refresh so the next request always pushes
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRefreshAt = time.Time{}
}

// Dropped returns how many refreshes have been dropped
func (t *Throttle) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}
