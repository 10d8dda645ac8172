// Package roster owns the live roster and drives its lifecycle: opening
// with interactive collection, adding entries, cancelling, and closing
// either on the deadline or on request.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/metrics"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/display"
	"github.com/mcoot/rollcall/internal/services/reminder"
)

// PresenceSource reports who is present right now
type PresenceSource interface {
	CurrentlyPresent(ctx context.Context) ([]string, error)
}

// InputCollector waits for the next coordinator message
type InputCollector interface {
	CollectLines(ctx context.Context, timeout time.Duration) ([]string, error)
}

// History persists closed rosters and publishes attendance
type History interface {
	Finalize(ctx context.Context, snap model.RosterSnapshot, mainRef, reserveRef model.MessageRef) (*model.SessionRecord, error)
	PublishReport(ctx context.Context) error
}

// Reminder nudges disconnected participants after a roster opens
type Reminder interface {
	Enabled() bool
	SendReminders(ctx context.Context, names []string, roster reminder.Roster) int
}

// Config holds controller settings
type Config struct {
	// Capacity is the number of main slots used when a roster opens
	Capacity int
	// AutoClose is how long a roster stays open before it closes itself
	AutoClose time.Duration
	// FinishDelay is the delay between a confirmed finish and the close
	FinishDelay time.Duration

	InputTimeout   time.Duration
	ConfirmTimeout time.Duration

	RefreshInterval time.Duration

	EndToken     string
	ConfirmToken string

	// Channel is where the lists and notices are shown
	Channel model.ChannelID
}

// DefaultConfig returns default controller configuration
func DefaultConfig() Config {
	return Config{
		Capacity:        10,
		AutoClose:       2 * time.Hour,
		FinishDelay:     time.Second,
		InputTimeout:    60 * time.Second,
		ConfirmTimeout:  30 * time.Second,
		RefreshInterval: display.DefaultRefreshInterval,
		EndToken:        "FIN",
		ConfirmToken:    "CONFIRMAR",
		Channel:         "roster",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity == 0 {
		c.Capacity = d.Capacity
	}
	if c.AutoClose <= 0 {
		c.AutoClose = d.AutoClose
	}
	if c.FinishDelay <= 0 {
		c.FinishDelay = d.FinishDelay
	}
	if c.InputTimeout <= 0 {
		c.InputTimeout = d.InputTimeout
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = d.ConfirmTimeout
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.EndToken == "" {
		c.EndToken = d.EndToken
	}
	if c.ConfirmToken == "" {
		c.ConfirmToken = d.ConfirmToken
	}
	if c.Channel == "" {
		c.Channel = d.Channel
	}
	return c
}

// Deps are the collaborators of a Controller
type Deps struct {
	Clock    clock.Clock
	Presence PresenceSource
	Input    InputCollector
	Target   display.Target
	History  History
	Reminder Reminder // optional
	Logger   *slog.Logger
}

// Controller serializes every roster mutation. mu guards the roster and
// is never held across I/O. timerMu guards the pending close; the close
// itself never takes timerMu, so cancelling and awaiting it under
// timerMu cannot deadlock.
type Controller struct {
	cfg       Config
	clock     clock.Clock
	presence  PresenceSource
	input     InputCollector
	target    display.Target
	history   History
	reminder  Reminder
	publisher *display.Publisher
	throttle  *display.Throttle
	logger    *slog.Logger

	mu         sync.Mutex
	roster     *model.Roster
	capacity   int
	finalizing bool

	timerMu sync.Mutex
	pending *closeTask

	background sync.WaitGroup
}

// closeTask is a scheduled close. done is closed once the close has run
// or the task has been stopped before running.
type closeTask struct {
	epoch uint64
	timer *clock.Timer
	done  chan struct{}
}

// stop cancels the task, or waits for it if it has already started
func (t *closeTask) stop() {
	if t.timer.Stop() {
		close(t.done)
		return
	}
	<-t.done
}

// NewController creates a controller with a closed, empty roster
func NewController(cfg Config, deps Deps) *Controller {
	cfg = cfg.withDefaults()
	logger := deps.Logger.With(slog.String("component", "roster"))

	c := &Controller{
		cfg:       cfg,
		clock:     deps.Clock,
		presence:  deps.Presence,
		input:     deps.Input,
		target:    deps.Target,
		history:   deps.History,
		reminder:  deps.Reminder,
		publisher: display.NewPublisher(deps.Target, cfg.Channel, deps.Clock, deps.Logger),
		logger:    logger,
		roster:    model.NewRoster(),
		capacity:  cfg.Capacity,
	}
	c.throttle = display.NewThrottle(deps.Clock, cfg.RefreshInterval, c.pushLive, deps.Logger)
	return c
}

// Open starts a new roster and collects names from the coordinator until
// the end token arrives. A timeout, or finishing with nothing collected,
// abandons the roster without persisting anything.
func (c *Controller) Open(ctx context.Context) error {
	now := c.clock.Now()

	c.mu.Lock()
	if c.roster.IsOpen() || c.finalizing {
		c.mu.Unlock()
		return model.ErrAlreadyOpen
	}
	if err := c.roster.Open(c.capacity, now, now.Add(c.cfg.AutoClose)); err != nil {
		c.mu.Unlock()
		return err
	}
	epoch := c.roster.Epoch()
	c.mu.Unlock()

	c.publisher.Begin(epoch)
	c.throttle.Reset()
	metrics.RosterLifecycle.WithLabelValues(metrics.OutcomeOpened).Inc()
	c.logger.Info("roster opened", slog.Uint64("epoch", epoch), slog.Int("capacity", c.capacity))

	if _, ok := c.scheduleClose(ctx, epoch, c.cfg.AutoClose); !ok {
		return model.ErrNotOpen
	}

	c.notice(ctx, fmt.Sprintf("✍ Enter the participants, one per line. Send `%s` when you are done.", c.cfg.EndToken))
	_, err := c.collect(ctx, epoch)
	switch {
	case errors.Is(err, model.ErrNotOpen):
		// The roster closed underneath the collection
		return err
	case err != nil:
		c.abandon(ctx, epoch)
		if errors.Is(err, model.ErrTimeout) {
			metrics.RosterLifecycle.WithLabelValues(metrics.OutcomeTimeout).Inc()
			c.notice(ctx, "⏳ Timed out waiting for names. The roster was not created.")
		}
		return err
	}

	c.mu.Lock()
	stillOpen := c.roster.IsOpen() && c.roster.Epoch() == epoch && !c.finalizing
	names := c.roster.Names()
	c.mu.Unlock()

	if !stillOpen {
		return model.ErrNotOpen
	}
	if len(names) == 0 {
		c.abandon(ctx, epoch)
		metrics.RosterLifecycle.WithLabelValues(metrics.OutcomeEmpty).Inc()
		c.notice(ctx, "⚠️ No participants were entered. The roster was not created.")
		return model.ErrEmptyRoster
	}

	c.throttle.RequestRefresh(ctx, true)

	if c.reminder != nil && c.reminder.Enabled() {
		bg := context.WithoutCancel(ctx)
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			sent := c.reminder.SendReminders(bg, names, c)
			c.logger.Info("reminders finished", slog.Int("sent", sent))
		}()
	}
	return nil
}

// collect reads batches until the end token. Each batch is added all or
// nothing; a rejected batch is reported and collection continues. It
// returns how many names were added.
func (c *Controller) collect(ctx context.Context, epoch uint64) (int, error) {
	added := 0
	for {
		lines, err := c.input.CollectLines(ctx, c.cfg.InputTimeout)
		if err != nil {
			return added, err
		}

		names := cleanLines(lines)
		if len(names) == 1 && strings.EqualFold(names[0], c.cfg.EndToken) {
			return added, nil
		}
		if len(names) == 0 {
			continue
		}

		present := c.presentSet(ctx)

		c.mu.Lock()
		if !c.roster.IsOpen() || c.roster.Epoch() != epoch || c.finalizing {
			c.mu.Unlock()
			return added, model.ErrNotOpen
		}
		err = c.roster.TryAddBatch(names, func(name string) model.Status {
			return model.StatusFor(present[name])
		})
		size := c.roster.Len()
		c.mu.Unlock()

		var dup *model.DuplicateError
		if errors.As(err, &dup) {
			metrics.RejectedBatches.Inc()
			c.notice(ctx, fmt.Sprintf("⚠️ `%s` is already on the roster. Send the batch again without duplicates.", dup.Name))
			continue
		}
		if err != nil {
			return added, err
		}

		added += len(names)
		metrics.RosterEntries.Set(float64(size))
		c.throttle.RequestRefresh(ctx, true)
	}
}

// AddEntries adds to the open roster. Manual mode collects batches from
// the coordinator as Open does; automatic mode adds name as connected
// and reports whether it was added.
func (c *Controller) AddEntries(ctx context.Context, mode model.AddMode, name string) (bool, error) {
	switch mode {
	case model.AddModeManual:
		return c.addManual(ctx)
	case model.AddModeAutomatic:
		return c.addAutomatic(ctx, name)
	default:
		return false, model.ErrInvalidAddMode
	}
}

func (c *Controller) addManual(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.roster.IsOpen() || c.finalizing {
		c.mu.Unlock()
		return false, model.ErrNotOpen
	}
	epoch := c.roster.Epoch()
	c.mu.Unlock()

	c.notice(ctx, fmt.Sprintf("✍ Enter the participants to add, one per line. Send `%s` when you are done.", c.cfg.EndToken))
	added, err := c.collect(ctx, epoch)
	if errors.Is(err, model.ErrTimeout) {
		c.notice(ctx, "⏳ Timed out waiting for names. Names already added stay on the roster.")
	}
	return added > 0, err
}

func (c *Controller) addAutomatic(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, model.ErrEntryNameMissing
	}

	c.mu.Lock()
	if !c.roster.IsOpen() || c.finalizing {
		c.mu.Unlock()
		return false, model.ErrNotOpen
	}
	if c.roster.Has(name) {
		c.mu.Unlock()
		return false, nil
	}
	if err := c.roster.TryAdd(name, model.StatusConnected); err != nil {
		c.mu.Unlock()
		return false, err
	}
	size := c.roster.Len()
	c.mu.Unlock()

	metrics.RosterEntries.Set(float64(size))
	c.logger.Info("participant auto-added", slog.String("name", name))
	c.throttle.RequestRefresh(ctx, true)
	return true, nil
}

// Cancel discards the open roster after the coordinator confirms. Nothing
// is persisted and the lists are removed from the display.
func (c *Controller) Cancel(ctx context.Context) error {
	epoch, ok := c.openEpoch()
	if !ok {
		return model.ErrNotOpen
	}

	c.notice(ctx, fmt.Sprintf("❗ Are you sure you want to cancel the roster? Reply `%s` to proceed.", c.cfg.ConfirmToken))
	if err := c.awaitConfirmation(ctx); err != nil {
		if errors.Is(err, model.ErrTimeout) {
			c.notice(ctx, "⚠️ Cancellation aborted. No confirmation was received in time.")
		}
		return err
	}

	c.cancelPendingClose()

	c.mu.Lock()
	if !c.roster.IsOpen() || c.roster.Epoch() != epoch || c.finalizing {
		c.mu.Unlock()
		return model.ErrNotOpen
	}
	c.roster.Clear()
	c.mu.Unlock()

	c.publisher.DeleteAll(ctx, epoch)
	metrics.RosterEntries.Set(0)
	metrics.RosterLifecycle.WithLabelValues(metrics.OutcomeCancelled).Inc()
	c.logger.Info("roster cancelled", slog.Uint64("epoch", epoch))
	c.notice(ctx, "✅ The roster has been cancelled.")
	return nil
}

// Finish closes the open roster after the coordinator confirms. The
// pending auto-close is replaced by one due after FinishDelay, and Finish
// returns once that close has completed.
func (c *Controller) Finish(ctx context.Context) error {
	if _, ok := c.openEpoch(); !ok {
		return model.ErrNotOpen
	}

	c.notice(ctx, fmt.Sprintf("Are you sure you want to close the roster? Reply `%s` to proceed.", c.cfg.ConfirmToken))
	if err := c.awaitConfirmation(ctx); err != nil {
		if errors.Is(err, model.ErrTimeout) {
			c.notice(ctx, "No confirmation was received in time. The roster stays open.")
		}
		return err
	}

	epoch, ok := c.openEpoch()
	if !ok {
		return model.ErrNotOpen
	}

	task, ok := c.scheduleClose(ctx, epoch, c.cfg.FinishDelay)
	if !ok {
		// Closed on its own deadline while the confirmation was handled
		return model.ErrNotOpen
	}
	select {
	case <-task.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitConfirmation waits for a message that is exactly the confirm
// token. Other messages are ignored; the deadline is not extended.
func (c *Controller) awaitConfirmation(ctx context.Context) error {
	deadline := c.clock.Now().Add(c.cfg.ConfirmTimeout)
	for {
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			return model.ErrTimeout
		}
		lines, err := c.input.CollectLines(ctx, remaining)
		if err != nil {
			return err
		}
		lines = cleanLines(lines)
		if len(lines) == 1 && strings.EqualFold(lines[0], c.cfg.ConfirmToken) {
			return nil
		}
	}
}

// scheduleClose replaces any pending close with one due after d for the
// roster opened at epoch. The replaced task has either been cancelled or
// has finished running when this returns. It reports false, scheduling
// nothing, if that roster is no longer open by then.
func (c *Controller) scheduleClose(ctx context.Context, epoch uint64, d time.Duration) (*closeTask, bool) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.pending != nil {
		c.pending.stop()
		c.pending = nil
	}

	c.mu.Lock()
	if !c.roster.IsOpen() || c.roster.Epoch() != epoch || c.finalizing {
		c.mu.Unlock()
		return nil, false
	}
	c.roster.SetClosesAt(c.clock.Now().Add(d))
	c.mu.Unlock()

	closeCtx := context.WithoutCancel(ctx)
	task := &closeTask{epoch: epoch, done: make(chan struct{})}
	task.timer = c.clock.AfterFunc(d, func() {
		defer close(task.done)
		c.close(closeCtx, task.epoch)
	})
	c.pending = task
	return task, true
}

// cancelPendingClose stops the pending close, waiting for it if it has
// already started
func (c *Controller) cancelPendingClose() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.pending != nil {
		c.pending.stop()
		c.pending = nil
	}
}

// close finalizes the open roster: statuses are refreshed from presence,
// the closed lists are pushed, the session is persisted, and the
// attendance report is published. It runs at most once per roster, and
// only for the roster opened at epoch.
func (c *Controller) close(ctx context.Context, epoch uint64) {
	c.mu.Lock()
	if !c.roster.IsOpen() || c.roster.Epoch() != epoch || c.finalizing {
		c.mu.Unlock()
		c.logger.Debug("stale close skipped", slog.Uint64("epoch", epoch))
		return
	}
	c.finalizing = true
	c.mu.Unlock()

	present, err := c.presence.CurrentlyPresent(ctx)
	if err != nil {
		c.logger.Warn("presence unavailable at close, keeping last known statuses", slog.Any("error", err))
	}

	c.mu.Lock()
	if err == nil {
		c.applyPresenceLocked(present)
	}
	snap := c.roster.Snapshot()
	c.mu.Unlock()

	if err := c.publisher.Push(ctx, snap, true); err != nil {
		c.logger.Warn("failed to push closed roster", slog.Any("error", err))
	}

	mainRef, reserveRef := c.publisher.Refs()
	if _, err := c.history.Finalize(ctx, snap, mainRef, reserveRef); err != nil {
		c.logger.Error("closed roster was not persisted",
			slog.Uint64("epoch", epoch),
			slog.Int("entries", len(snap.Entries)),
			slog.Any("error", err),
		)
	}
	c.publisher.Retire()

	c.mu.Lock()
	c.roster.Clear()
	c.finalizing = false
	c.mu.Unlock()

	metrics.RosterEntries.Set(0)
	metrics.RosterLifecycle.WithLabelValues(metrics.OutcomeClosed).Inc()
	c.logger.Info("roster closed", slog.Uint64("epoch", epoch), slog.Int("entries", len(snap.Entries)))

	c.notice(ctx, "⛔ The roster is closed. No further changes can be made.")
	if err := c.history.PublishReport(ctx); err != nil {
		c.logger.Warn("failed to publish attendance report", slog.Any("error", err))
	}
}

// abandon discards a roster that never finished opening
func (c *Controller) abandon(ctx context.Context, epoch uint64) {
	c.cancelPendingClose()

	c.mu.Lock()
	if c.roster.IsOpen() && c.roster.Epoch() == epoch && !c.finalizing {
		c.roster.Clear()
	}
	c.mu.Unlock()

	c.publisher.DeleteAll(ctx, epoch)
	metrics.RosterEntries.Set(0)
	c.logger.Info("roster abandoned", slog.Uint64("epoch", epoch))
}

// SetCapacity changes the number of main slots used by the next roster
func (c *Controller) SetCapacity(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roster.IsOpen() || c.finalizing {
		return model.ErrRosterOpen
	}
	if n < 1 || n > model.MaxCapacity {
		return model.ErrInvalidCapacity
	}
	c.capacity = n
	return nil
}

// Capacity returns the configured number of main slots
func (c *Controller) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// View is a read-only summary of the roster
type View struct {
	State        model.RosterState
	Capacity     int
	Main         []model.Entry
	Reserve      []model.Entry
	Connected    int
	Disconnected int
	OpenedAt     time.Time
	ClosesAt     time.Time
	Finalizing   bool
}

// Status returns the current roster view
func (c *Controller) Status() View {
	c.mu.Lock()
	snap := c.roster.Snapshot()
	capacity := c.capacity
	finalizing := c.finalizing
	c.mu.Unlock()

	view := View{
		State:      snap.State,
		Capacity:   capacity,
		OpenedAt:   snap.OpenedAt,
		ClosesAt:   snap.ClosesAt,
		Finalizing: finalizing,
	}
	if snap.State == model.RosterStateOpen {
		view.Capacity = snap.Capacity
		view.Main, view.Reserve = snap.Split()
		view.Connected, view.Disconnected = snap.Counts()
	}
	return view
}

// IsOpen reports whether a roster is open
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.IsOpen()
}

// Has reports whether name is on the open roster
func (c *Controller) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.Has(name)
}

// StatusOf returns the status of name on the open roster
func (c *Controller) StatusOf(name string) (model.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.roster.IsOpen() {
		return "", false
	}
	return c.roster.StatusOf(name)
}

// ApplyStatus sets the status of one entry and reports whether it changed
func (c *Controller) ApplyStatus(name string, status model.Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.roster.IsOpen() {
		return false
	}
	return c.roster.SetStatus(name, status)
}

// ApplyPresence marks every entry connected or disconnected according to
// present and reports whether anything changed
func (c *Controller) ApplyPresence(present []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.roster.IsOpen() {
		return false
	}
	return c.applyPresenceLocked(present)
}

func (c *Controller) applyPresenceLocked(present []string) bool {
	set := lo.Associate(present, func(name string) (string, bool) { return name, true })
	changed := false
	for _, name := range c.roster.Names() {
		if c.roster.SetStatus(name, model.StatusFor(set[name])) {
			changed = true
		}
	}
	return changed
}

// RequestRefresh asks for a display refresh, subject to throttling
func (c *Controller) RequestRefresh(ctx context.Context, force bool) {
	c.throttle.RequestRefresh(ctx, force)
}

// Shutdown stops the pending close without running it and waits for
// background reminders to finish
func (c *Controller) Shutdown() {
	c.cancelPendingClose()
	c.background.Wait()
}

func (c *Controller) pushLive(ctx context.Context) error {
	c.mu.Lock()
	if !c.roster.IsOpen() || c.finalizing {
		c.mu.Unlock()
		return nil
	}
	snap := c.roster.Snapshot()
	c.mu.Unlock()

	return c.publisher.Push(ctx, snap, false)
}

func (c *Controller) openEpoch() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.roster.IsOpen() || c.finalizing {
		return 0, false
	}
	return c.roster.Epoch(), true
}

// presentSet looks up presence for stamping new entries. A lookup failure
// stamps everyone as disconnected; the next sweep corrects it.
func (c *Controller) presentSet(ctx context.Context) map[string]bool {
	present, err := c.presence.CurrentlyPresent(ctx)
	if err != nil {
		c.logger.Warn("presence unavailable, new entries marked disconnected", slog.Any("error", err))
		return map[string]bool{}
	}
	return lo.Associate(present, func(name string) (string, bool) { return name, true })
}

func (c *Controller) notice(ctx context.Context, text string) {
	if _, err := c.target.Send(ctx, c.cfg.Channel, display.Notice(text)); err != nil {
		c.logger.Warn("failed to send notice", slog.Any("error", err))
	}
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
