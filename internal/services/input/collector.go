package input

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/model"
)

// Collector hands coordinator messages to whoever is waiting for input.
// Each submitted message is delivered to every current waiter. A message
// submitted while nobody is waiting is dropped, the same as a chat line
// typed when no command is listening.
type Collector struct {
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	changed *sync.Cond
	nextID  uint64
	waiters map[uint64]chan []string
}

// New creates a Collector
func New(clk clock.Clock, logger *slog.Logger) *Collector {
	c := &Collector{
		clock:   clk,
		logger:  logger.With(slog.String("component", "input")),
		waiters: make(map[uint64]chan []string),
	}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Submit delivers text, split into lines, to every waiting collector.
// It returns the number of waiters that received it.
func (c *Collector) Submit(text string) int {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	c.mu.Lock()
	defer c.mu.Unlock()

	delivered := len(c.waiters)
	for id, ch := range c.waiters {
		out := make([]string, len(lines))
		copy(out, lines)
		ch <- out // buffered, one message per waiter
		delete(c.waiters, id)
	}
	c.changed.Broadcast()

	if delivered == 0 {
		c.logger.Debug("input dropped, nobody waiting", slog.Int("lines", len(lines)))
	}
	return delivered
}

// CollectLines waits for the next submitted message and returns its
// lines. It returns model.ErrTimeout when nothing arrives within timeout.
func (c *Collector) CollectLines(ctx context.Context, timeout time.Duration) ([]string, error) {
	// Registered before the waiter so a waiter is never visible without its deadline
	expired := c.clock.After(timeout)
	ch := make(chan []string, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.waiters[id] = ch
	c.changed.Broadcast()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.changed.Broadcast()
		c.mu.Unlock()
	}()

	select {
	case lines := <-ch:
		return lines, nil
	case <-expired:
		// A message may have raced the deadline
		select {
		case lines := <-ch:
			return lines, nil
		default:
		}
		return nil, model.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Waiting returns the number of goroutines blocked in CollectLines
func (c *Collector) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// WaitForWaiters blocks until at least n goroutines are blocked in
// CollectLines. Tests use it to submit input only once it can be received.
func (c *Collector) WaitForWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.changed.Wait()
	}
}
