package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/dependencies/random"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/display"
)

// Board is an in-process display target. It keeps the messages currently
// shown on each channel and streams every change to that channel's SSE
// subscribers.
type Board struct {
	hubs   *HubManager
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	mu       sync.RWMutex
	messages map[model.MessageRef]*model.BoardMessage
	order    []model.MessageRef
}

// Ensure Board implements display.Target
var _ display.Target = (*Board)(nil)

// NewBoard creates an empty board
func NewBoard(hubs *HubManager, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Board {
	return &Board{
		hubs:     hubs,
		clock:    clk,
		random:   rnd,
		logger:   logger.With(slog.String("component", "board")),
		messages: make(map[model.MessageRef]*model.BoardMessage),
	}
}

// Send shows a new message on channel
func (b *Board) Send(_ context.Context, channel model.ChannelID, msg model.Message) (model.MessageRef, error) {
	b.mu.Lock()
	ref := b.newRefLocked()
	bm := &model.BoardMessage{
		Ref:       ref,
		Channel:   channel,
		Message:   msg,
		UpdatedAt: b.clock.Now(),
	}
	b.messages[ref] = bm
	b.order = append(b.order, ref)
	event := model.BoardEvent{Type: model.EventMessageCreated, Message: *bm}
	b.mu.Unlock()

	b.publish(event)
	return ref, nil
}

// Edit replaces the content of ref
func (b *Board) Edit(_ context.Context, ref model.MessageRef, msg model.Message) error {
	b.mu.Lock()
	bm, ok := b.messages[ref]
	if !ok {
		b.mu.Unlock()
		return display.ErrMessageNotFound
	}
	bm.Message = msg
	bm.UpdatedAt = b.clock.Now()
	event := model.BoardEvent{Type: model.EventMessageUpdated, Message: *bm}
	b.mu.Unlock()

	b.publish(event)
	return nil
}

// Delete removes ref from its channel
func (b *Board) Delete(_ context.Context, ref model.MessageRef) error {
	b.mu.Lock()
	bm, ok := b.messages[ref]
	if !ok {
		b.mu.Unlock()
		return display.ErrMessageNotFound
	}
	delete(b.messages, ref)
	for i, r := range b.order {
		if r == ref {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	event := model.BoardEvent{
		Type:    model.EventMessageDeleted,
		Message: model.BoardMessage{Ref: ref, Channel: bm.Channel, UpdatedAt: b.clock.Now()},
	}
	b.mu.Unlock()

	b.publish(event)
	return nil
}

// PruneNotices deletes the notices on channel last changed before cutoff.
// Rendered lists are never pruned. It returns how many were removed.
func (b *Board) PruneNotices(ctx context.Context, channel model.ChannelID, cutoff time.Time) int {
	b.mu.RLock()
	var stale []model.MessageRef
	for _, ref := range b.order {
		bm := b.messages[ref]
		if bm.Channel == channel && display.IsNotice(bm.Message) && bm.UpdatedAt.Before(cutoff) {
			stale = append(stale, ref)
		}
	}
	b.mu.RUnlock()

	pruned := 0
	for _, ref := range stale {
		// A concurrent Delete may have won; that is fine
		if err := b.Delete(ctx, ref); err == nil {
			pruned++
		}
	}
	if pruned > 0 {
		b.logger.Debug("pruned notices",
			slog.String("channel", string(channel)),
			slog.Int("count", pruned))
	}
	return pruned
}

// Get returns one message
func (b *Board) Get(ref model.MessageRef) (model.BoardMessage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bm, ok := b.messages[ref]
	if !ok {
		return model.BoardMessage{}, false
	}
	return *bm, true
}

// Messages returns the messages shown on channel, oldest first. The last
// limit messages are returned when limit is positive.
func (b *Board) Messages(channel model.ChannelID, limit int) []model.BoardMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []model.BoardMessage
	for _, ref := range b.order {
		if bm := b.messages[ref]; bm.Channel == channel {
			out = append(out, *bm)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Channels lists every channel with at least one message
func (b *Board) Channels() []model.ChannelID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[model.ChannelID]struct{})
	for _, bm := range b.messages {
		seen[bm.Channel] = struct{}{}
	}
	out := make([]model.ChannelID, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot encodes the current messages of channel as created events,
// for a subscriber that has just connected
func (b *Board) Snapshot(channel model.ChannelID) [][]byte {
	messages := b.Messages(channel, 0)
	out := make([][]byte, 0, len(messages))
	for _, bm := range messages {
		if data, ok := b.encode(model.BoardEvent{Type: model.EventMessageCreated, Message: bm}); ok {
			out = append(out, data)
		}
	}
	return out
}

func (b *Board) publish(event model.BoardEvent) {
	hub := b.hubs.GetHub(event.Message.Channel)
	if hub == nil {
		return
	}
	if data, ok := b.encode(event); ok {
		hub.Broadcast(data)
	}
}

func (b *Board) encode(event model.BoardEvent) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to encode board event",
			slog.String("ref", string(event.Message.Ref)),
			slog.Any("error", err))
		return nil, false
	}
	return formatSSEMessage(string(event.Type), string(data)), true
}

func (b *Board) newRefLocked() model.MessageRef {
	for {
		ref := model.MessageRef(random.Ref(b.random, "msg"))
		if _, taken := b.messages[ref]; !taken {
			return ref
		}
	}
}
