package presence

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/mcoot/rollcall/internal/metrics"
	"github.com/mcoot/rollcall/internal/model"
)

// DefaultEventBuffer is the capacity of the tracker's event queue
const DefaultEventBuffer = 256

// Tracker is the in-memory presence source. It records which channel each
// participant is currently in and forwards every update to a bounded
// event queue consumed by the Reconciler.
type Tracker struct {
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[string]model.ChannelID

	events chan model.PresenceEvent
}

// NewTracker creates a tracker whose event queue holds buffer events
func NewTracker(buffer int, logger *slog.Logger) *Tracker {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Tracker{
		logger:   logger.With(slog.String("component", "presence-tracker")),
		channels: make(map[string]model.ChannelID),
		events:   make(chan model.PresenceEvent, buffer),
	}
}

// Update records ev and queues it for the reconciler. When the queue is
// full the event is dropped; the periodic sweep repairs the drift.
func (t *Tracker) Update(ev model.PresenceEvent) {
	t.mu.Lock()
	if ev.Present {
		t.channels[ev.Name] = ev.ChannelID
	} else {
		delete(t.channels, ev.Name)
	}
	t.mu.Unlock()

	select {
	case t.events <- ev:
		metrics.PresenceEvents.Inc()
	default:
		metrics.PresenceEventsDropped.Inc()
		t.logger.Warn("presence event queue full, dropping event",
			slog.String("name", ev.Name),
			slog.Bool("present", ev.Present),
		)
	}
}

// Events returns the queue of presence updates
func (t *Tracker) Events() <-chan model.PresenceEvent {
	return t.events
}

// CurrentlyPresent returns the names of everyone in any channel, sorted
func (t *Tracker) CurrentlyPresent(context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.channels))
	for name := range t.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ChannelOf returns the channel name is in, if any
func (t *Tracker) ChannelOf(name string) (model.ChannelID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[name]
	return ch, ok
}
