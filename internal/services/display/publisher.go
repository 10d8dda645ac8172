package display

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/model"
)

// Publisher keeps the roster lists shown on one channel in sync with the
// roster. Pushes are serialized so two concurrent refreshes never both
// create the same message.
//
// A publisher is bound to one roster epoch at a time. Pushes carrying a
// snapshot from another epoch, or arriving after Retire, are ignored;
// this stops a late throttled refresh from recreating messages for a
// roster that has already been closed or cancelled. Once the closed
// lists have been pushed, live pushes are ignored too.
type Publisher struct {
	target  Target
	channel model.ChannelID
	clock   clock.Clock
	logger  *slog.Logger

	mu         sync.Mutex
	epoch      uint64
	active     bool
	sealed     bool
	mainRef    model.MessageRef
	reserveRef model.MessageRef
}

// NewPublisher creates a publisher writing to channel on target
func NewPublisher(target Target, channel model.ChannelID, clk clock.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{
		target:  target,
		channel: channel,
		clock:   clk,
		logger:  logger.With(slog.String("component", "display-publisher")),
	}
}

// Begin binds the publisher to a freshly opened roster
func (p *Publisher) Begin(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epoch = epoch
	p.active = true
	p.sealed = false
	p.mainRef = ""
	p.reserveRef = ""
}

// Push renders snap and creates or edits the list messages. closed
// selects the closed footer.
func (p *Publisher) Push(ctx context.Context, snap model.RosterSnapshot, closed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || snap.Epoch != p.epoch || (p.sealed && !closed) {
		return nil
	}
	if closed {
		p.sealed = true
	}

	now := p.clock.Now()
	var rendered Rendered
	if closed {
		rendered = RenderClosed(snap, now)
	} else {
		rendered = RenderLive(snap, now)
	}

	ref, err := p.upsert(ctx, p.mainRef, rendered.Main)
	if err != nil {
		return err
	}
	p.mainRef = ref

	// The reserve list only ever grows while the roster is open
	if rendered.Reserve != nil {
		ref, err := p.upsert(ctx, p.reserveRef, *rendered.Reserve)
		if err != nil {
			return err
		}
		p.reserveRef = ref
	}
	return nil
}

func (p *Publisher) upsert(ctx context.Context, ref model.MessageRef, msg model.Message) (model.MessageRef, error) {
	if ref == "" {
		return p.target.Send(ctx, p.channel, msg)
	}
	return ref, p.target.Edit(ctx, ref, msg)
}

// Refs returns the references of the messages currently shown
func (p *Publisher) Refs() (main, reserve model.MessageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mainRef, p.reserveRef
}

// Retire detaches the publisher from its roster and returns the
// references of the messages it last showed. The messages stay on the
// target.
func (p *Publisher) Retire() (main, reserve model.MessageRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	main, reserve = p.mainRef, p.reserveRef
	p.active = false
	p.mainRef = ""
	p.reserveRef = ""
	return main, reserve
}

// DeleteAll removes the list messages of epoch from the target and
// retires the publisher. It does nothing if the publisher has moved on to
// another epoch. Delete errors are logged, not returned.
func (p *Publisher) DeleteAll(ctx context.Context, epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || p.epoch != epoch {
		return
	}

	for _, ref := range []model.MessageRef{p.reserveRef, p.mainRef} {
		if ref == "" {
			continue
		}
		if err := p.target.Delete(ctx, ref); err != nil {
			p.logger.Warn("failed to delete roster message",
				slog.String("ref", string(ref)),
				slog.Any("error", err),
			)
		}
	}
	p.active = false
	p.mainRef = ""
	p.reserveRef = ""
}
