package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/metrics"
	"github.com/mcoot/rollcall/internal/model"
)

// DefaultSweepInterval is how often every roster entry is re-checked
const DefaultSweepInterval = 60 * time.Second

// Roster is the synchronized view of the roster the reconciler drives.
// The reconciler never touches the roster state directly.
type Roster interface {
	IsOpen() bool
	Has(name string) bool
	ApplyStatus(name string, status model.Status) bool
	ApplyPresence(present []string) bool
	AddEntries(ctx context.Context, mode model.AddMode, name string) (bool, error)
	RequestRefresh(ctx context.Context, force bool)
}

// Source reports who is present right now
type Source interface {
	CurrentlyPresent(ctx context.Context) ([]string, error)
}

// Config holds reconciler settings
type Config struct {
	// AutoAddChannel is the channel whose arrivals join the roster automatically
	AutoAddChannel model.ChannelID
	SweepInterval  time.Duration
}

// Reconciler keeps roster statuses in line with presence events and a
// periodic sweep, and auto-adds arrivals in the auto-add channel
type Reconciler struct {
	roster Roster
	source Source
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

// NewReconciler creates a reconciler
func NewReconciler(roster Roster, source Source, clk clock.Clock, cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Reconciler{
		roster:   roster,
		source:   source,
		clock:    clk,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "presence-reconciler")),
		inFlight: make(map[string]struct{}),
	}
}

// ReconcileOne applies one participant's status. It is a no-op while the
// roster is closed or when name is not on it.
func (r *Reconciler) ReconcileOne(ctx context.Context, name string, status model.Status) {
	if !r.roster.IsOpen() || !r.roster.Has(name) {
		return
	}
	if r.roster.ApplyStatus(name, status) {
		r.logger.Debug("status updated", slog.String("name", name), slog.String("status", string(status)))
	}
	r.roster.RequestRefresh(ctx, false)
}

// SweepAll sets every tracked entry to connected iff it is in present.
// It is skipped while the roster is closed.
func (r *Reconciler) SweepAll(ctx context.Context, present []string) {
	if !r.roster.IsOpen() {
		return
	}
	metrics.Sweeps.Inc()
	if r.roster.ApplyPresence(present) {
		r.logger.Debug("sweep changed statuses", slog.Int("present", len(present)))
	}
	r.roster.RequestRefresh(ctx, false)
}

// AutoAddIfEligible adds name as connected unless another add of the same
// name is already in flight. It returns whether name was added.
func (r *Reconciler) AutoAddIfEligible(ctx context.Context, name string) bool {
	r.inFlightMu.Lock()
	if _, busy := r.inFlight[name]; busy {
		r.inFlightMu.Unlock()
		return false
	}
	r.inFlight[name] = struct{}{}
	r.inFlightMu.Unlock()

	defer func() {
		r.inFlightMu.Lock()
		delete(r.inFlight, name)
		r.inFlightMu.Unlock()
	}()

	added, err := r.roster.AddEntries(ctx, model.AddModeAutomatic, name)
	if err != nil {
		if !errors.Is(err, model.ErrNotOpen) {
			r.logger.Warn("auto-add failed", slog.String("name", name), slog.Any("error", err))
		}
		return false
	}
	if added {
		r.logger.Info("participant auto-added", slog.String("name", name))
	}
	return added
}

// HandleEvent dispatches one presence event
func (r *Reconciler) HandleEvent(ctx context.Context, ev model.PresenceEvent) {
	if !r.roster.IsOpen() {
		return
	}

	if ev.Present && r.cfg.AutoAddChannel != "" && ev.ChannelID == r.cfg.AutoAddChannel && !r.roster.Has(ev.Name) {
		r.AutoAddIfEligible(ctx, ev.Name)
	}

	if r.roster.Has(ev.Name) {
		r.ReconcileOne(ctx, ev.Name, model.StatusFor(ev.Present))
	}
}

// Run consumes events and sweeps periodically until ctx is done
func (r *Reconciler) Run(ctx context.Context, events <-chan model.PresenceEvent) error {
	ticker := r.clock.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	r.logger.Info("presence reconciler started",
		slog.Duration("sweep_interval", r.cfg.SweepInterval),
		slog.String("auto_add_channel", string(r.cfg.AutoAddChannel)),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("presence reconciler stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.HandleEvent(ctx, ev)
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	if !r.roster.IsOpen() {
		return
	}
	present, err := r.source.CurrentlyPresent(ctx)
	if err != nil {
		r.logger.Warn("presence snapshot failed, skipping sweep", slog.Any("error", err))
		return
	}
	r.SweepAll(ctx, lo.Uniq(present))
}
