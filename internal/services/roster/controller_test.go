package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/dependencies/mocks"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/directory"
	"github.com/mcoot/rollcall/internal/services/display"
	"github.com/mcoot/rollcall/internal/services/history"
	"github.com/mcoot/rollcall/internal/services/input"
	"github.com/mcoot/rollcall/internal/services/reminder"
	"github.com/mcoot/rollcall/internal/storage/memory"
	"github.com/mcoot/rollcall/internal/testutil"
)

const rosterChannel model.ChannelID = "roster"

type recordingReminder struct {
	calls chan []string
}

func (r *recordingReminder) Enabled() bool { return true }

func (r *recordingReminder) SendReminders(_ context.Context, names []string, _ reminder.Roster) int {
	select {
	case r.calls <- names:
	default:
	}
	return len(names)
}

// racingClock lets a test make a timer fire at the instant it is being
// stopped, the window a real timer goroutine can win. It also counts how
// often callbacks of each delay have run.
type racingClock struct {
	*mocks.MockClock

	mu    sync.Mutex
	armed map[time.Duration]int
	fired map[time.Duration]int
}

func newRacingClock(c *mocks.MockClock) *racingClock {
	return &racingClock{
		MockClock: c,
		armed:     make(map[time.Duration]int),
		fired:     make(map[time.Duration]int),
	}
}

// fireOnStop makes the next Stop of a pending timer with delay d run its
// callback first
func (c *racingClock) fireOnStop(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed[d]++
}

func (c *racingClock) firedCount(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired[d]
}

func (c *racingClock) AfterFunc(d time.Duration, f func()) *clock.Timer {
	counted := func() {
		c.mu.Lock()
		c.fired[d]++
		c.mu.Unlock()
		f()
	}
	inner := c.MockClock.AfterFunc(d, counted)
	return clock.NewTimer(func() bool {
		c.mu.Lock()
		race := c.armed[d] > 0
		if race {
			c.armed[d]--
		}
		c.mu.Unlock()

		if !race {
			return inner.Stop()
		}
		if inner.Stop() {
			counted()
		}
		return false
	})
}

type ControllerSuite struct {
	suite.Suite
	clock    *mocks.MockClock
	racing   *racingClock
	input    *input.Collector
	presence *testutil.FakePresence
	target   *testutil.FakeTarget
	store    *memory.Storage
	history  *history.Service
	reminder *recordingReminder
	ctrl     *Controller
	ctx      context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.clock = mocks.NewMockClock(time.Date(2024, 3, 9, 21, 0, 0, 0, time.UTC))
	s.racing = newRacingClock(s.clock)
	s.input = input.New(s.clock, logger)
	s.presence = testutil.NewFakePresence("Alice")
	s.target = testutil.NewFakeTarget()
	s.store = memory.New()

	dir := directory.New("players", []model.Participant{
		{ID: "p1", DisplayName: "Alice", Roles: []model.RoleID{"players"}},
		{ID: "p2", DisplayName: "Bob", Roles: []model.RoleID{"players"}},
		{ID: "p3", DisplayName: "Carol", Roles: []model.RoleID{"players"}},
	})
	hcfg := history.DefaultConfig()
	hcfg.InitialBackoff = time.Millisecond
	hcfg.MaxBackoff = time.Millisecond
	s.history = history.New(s.store, dir, s.target, s.clock, hcfg, logger)
	s.reminder = &recordingReminder{calls: make(chan []string, 4)}

	s.ctrl = NewController(Config{
		Capacity:  2,
		AutoClose: 10 * time.Minute,
		Channel:   rosterChannel,
	}, Deps{
		Clock:    s.racing,
		Presence: s.presence,
		Input:    s.input,
		Target:   s.target,
		History:  s.history,
		Reminder: s.reminder,
		Logger:   logger,
	})
	s.ctx = context.Background()
}

func (s *ControllerSuite) TearDownTest() {
	s.ctrl.Shutdown()
}

// submit waits for a collector to be listening and hands it text
func (s *ControllerSuite) submit(text string) {
	s.input.WaitForWaiters(1)
	s.input.Submit(text)
}

func (s *ControllerSuite) run(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

func (s *ControllerSuite) open(batches ...string) {
	done := s.run(func() error { return s.ctrl.Open(s.ctx) })
	for _, b := range batches {
		s.submit(b)
	}
	s.submit("FIN")
	s.Require().NoError(<-done)
}

func (s *ControllerSuite) names(entries []model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// Open tests

func (s *ControllerSuite) TestOpenCollectsBatchesAndStampsStatus() {
	s.open("Alice\n  Bob  \n\n", "Carol")

	view := s.ctrl.Status()
	s.Equal(model.RosterStateOpen, view.State)
	s.Equal([]string{"Alice", "Bob"}, s.names(view.Main))
	s.Equal([]string{"Carol"}, s.names(view.Reserve))
	s.Equal(1, view.Connected)
	s.Equal(2, view.Disconnected)

	status, ok := s.ctrl.StatusOf("Alice")
	s.True(ok)
	s.Equal(model.StatusConnected, status)

	s.True(s.target.HasText(rosterChannel, display.MainTitle))
	s.True(s.target.HasText(rosterChannel, display.ReserveTitle))
}

func (s *ControllerSuite) TestOpenRejectsBatchWithDuplicate() {
	s.open("Alice\nBob", "Carol\nAlice", "Dave")

	view := s.ctrl.Status()
	s.Equal([]string{"Alice", "Bob"}, s.names(view.Main))
	s.Equal([]string{"Dave"}, s.names(view.Reserve))
	s.True(s.target.HasText(rosterChannel, "`Alice` is already on the roster"))
}

func (s *ControllerSuite) TestEndTokenIsCaseInsensitive() {
	done := s.run(func() error { return s.ctrl.Open(s.ctx) })
	s.submit("Alice")
	s.submit("  fin ")
	s.Require().NoError(<-done)
	s.True(s.ctrl.IsOpen())
}

func (s *ControllerSuite) TestOpenWithNoNamesLeavesRosterClosed() {
	done := s.run(func() error { return s.ctrl.Open(s.ctx) })
	s.submit("FIN")

	s.ErrorIs(<-done, model.ErrEmptyRoster)
	s.False(s.ctrl.IsOpen())

	// The auto-close was cancelled with the roster
	s.clock.Advance(time.Hour)
	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ControllerSuite) TestOpenTimeoutDiscardsRoster() {
	done := s.run(func() error { return s.ctrl.Open(s.ctx) })
	s.submit("Alice\nBob")

	s.input.WaitForWaiters(1)
	s.clock.Advance(60 * time.Second)

	s.ErrorIs(<-done, model.ErrTimeout)
	s.False(s.ctrl.IsOpen())
	s.False(s.target.HasText(rosterChannel, display.MainTitle))
	s.True(s.target.HasText(rosterChannel, "Timed out"))

	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ControllerSuite) TestOpenWhileOpenFails() {
	s.open("Alice")
	s.ErrorIs(s.ctrl.Open(s.ctx), model.ErrAlreadyOpen)
}

func (s *ControllerSuite) TestOpenStartsReminders() {
	s.presence.Set()
	s.open("Alice\nBob")

	s.Equal([]string{"Alice", "Bob"}, <-s.reminder.calls)
}

func (s *ControllerSuite) TestPresenceFailureStampsDisconnected() {
	s.presence.SetError(errors.New("gateway down"))
	s.open("Alice")

	status, ok := s.ctrl.StatusOf("Alice")
	s.True(ok)
	s.Equal(model.StatusDisconnected, status)
}

// AddEntries tests

func (s *ControllerSuite) TestAutomaticAddIsIdempotent() {
	s.open("Alice")

	added, err := s.ctrl.AddEntries(s.ctx, model.AddModeAutomatic, "Dave")
	s.Require().NoError(err)
	s.True(added)

	added, err = s.ctrl.AddEntries(s.ctx, model.AddModeAutomatic, "Dave")
	s.Require().NoError(err)
	s.False(added)

	status, _ := s.ctrl.StatusOf("Dave")
	s.Equal(model.StatusConnected, status)
}

func (s *ControllerSuite) TestAddEntriesValidation() {
	_, err := s.ctrl.AddEntries(s.ctx, model.AddModeAutomatic, "Dave")
	s.ErrorIs(err, model.ErrNotOpen)

	_, err = s.ctrl.AddEntries(s.ctx, model.AddMode("bulk"), "Dave")
	s.ErrorIs(err, model.ErrInvalidAddMode)

	s.open("Alice")
	_, err = s.ctrl.AddEntries(s.ctx, model.AddModeAutomatic, "  ")
	s.ErrorIs(err, model.ErrEntryNameMissing)
}

func (s *ControllerSuite) TestManualAddAppends() {
	s.open("Alice")

	done := s.run(func() error {
		_, err := s.ctrl.AddEntries(s.ctx, model.AddModeManual, "")
		return err
	})
	s.submit("Bob\nCarol")
	s.submit("FIN")
	s.Require().NoError(<-done)

	view := s.ctrl.Status()
	s.Equal([]string{"Alice", "Bob"}, s.names(view.Main))
	s.Equal([]string{"Carol"}, s.names(view.Reserve))
}

// Cancel tests

func (s *ControllerSuite) TestCancelRequiresConfirmation() {
	s.open("Alice\nBob\nCarol")

	done := s.run(func() error { return s.ctrl.Cancel(s.ctx) })
	s.submit("yes please")
	s.submit("confirmar")
	s.Require().NoError(<-done)

	s.False(s.ctrl.IsOpen())
	s.False(s.target.HasText(rosterChannel, display.MainTitle))
	s.False(s.target.HasText(rosterChannel, display.ReserveTitle))

	s.clock.Advance(time.Hour)
	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ControllerSuite) TestCancelTimesOut() {
	s.open("Alice")

	done := s.run(func() error { return s.ctrl.Cancel(s.ctx) })
	s.input.WaitForWaiters(1)
	s.clock.Advance(30 * time.Second)

	s.ErrorIs(<-done, model.ErrTimeout)
	s.True(s.ctrl.IsOpen())
}

func (s *ControllerSuite) TestCancelWhenClosed() {
	s.ErrorIs(s.ctrl.Cancel(s.ctx), model.ErrNotOpen)
}

// Close tests

func (s *ControllerSuite) TestAutoClosePersistsAndPublishes() {
	s.open("Alice\nBob\nCarol")
	s.presence.Set("Bob")

	s.clock.Advance(10 * time.Minute)

	s.False(s.ctrl.IsOpen())
	records, err := s.history.PastSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)

	rec := records[0]
	s.Equal(2, rec.Capacity)
	s.Equal([]model.Entry{
		{Name: "Alice", Status: model.StatusDisconnected},
		{Name: "Bob", Status: model.StatusConnected},
		{Name: "Carol", Status: model.StatusDisconnected},
	}, rec.Entries)
	s.NotEmpty(rec.MainDisplayRef)
	s.NotEmpty(rec.ReserveDisplayRef)

	main, ok := s.target.Get(rec.MainDisplayRef)
	s.Require().True(ok)
	s.Contains(main.Footer, display.ClosedLabel)

	s.True(s.target.HasText(rosterChannel, "roster is closed"))
	s.NotEmpty(s.target.Messages(history.DefaultConfig().StatsChannel))

	// Later refreshes leave the closed lists alone
	s.ctrl.RequestRefresh(s.ctx, true)
	main, _ = s.target.Get(rec.MainDisplayRef)
	s.Contains(main.Footer, display.ClosedLabel)
}

func (s *ControllerSuite) TestCloseKeepsStatusesWhenPresenceFails() {
	s.open("Alice\nBob")
	s.presence.SetError(errors.New("gateway down"))

	s.clock.Advance(10 * time.Minute)

	records, err := s.history.PastSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(model.StatusConnected, records[0].Entries[0].Status)
	s.Equal(model.StatusDisconnected, records[0].Entries[1].Status)
}

func (s *ControllerSuite) TestFinishClosesAfterDelay() {
	s.open("Alice")
	finishAt := s.clock.Now().Add(time.Second)

	done := s.run(func() error { return s.ctrl.Finish(s.ctx) })
	s.submit("CONFIRMAR")

	s.Eventually(func() bool {
		return s.ctrl.Status().ClosesAt.Equal(finishAt)
	}, time.Second, time.Millisecond)
	s.clock.Advance(time.Second)

	s.Require().NoError(<-done)
	s.False(s.ctrl.IsOpen())

	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	// The original deadline no longer fires
	s.open("Bob")
	s.clock.Advance(10*time.Minute - 500*time.Millisecond)
	s.True(s.ctrl.IsOpen())
}

func (s *ControllerSuite) TestFinishReplacesPendingClose() {
	s.open("Alice")

	done := s.run(func() error { return s.ctrl.Finish(s.ctx) })
	s.submit("CONFIRMAR")
	s.Eventually(func() bool {
		return s.ctrl.Status().ClosesAt.Equal(s.clock.Now().Add(time.Second))
	}, time.Second, time.Millisecond)
	s.clock.Advance(time.Second)
	s.Require().NoError(<-done)

	s.clock.Advance(2 * time.Hour)
	s.Equal(0, s.racing.firedCount(10*time.Minute))
	s.Equal(1, s.racing.firedCount(time.Second))
}

func (s *ControllerSuite) TestFinishRacingExpiryPersistsOnce() {
	s.open("Alice")
	s.racing.fireOnStop(10 * time.Minute)

	done := s.run(func() error { return s.ctrl.Finish(s.ctx) })
	s.submit("CONFIRMAR")

	// The deadline won; Finish has nothing left to close
	s.ErrorIs(<-done, model.ErrNotOpen)
	s.False(s.ctrl.IsOpen())

	s.ctrl.timerMu.Lock()
	s.Nil(s.ctrl.pending)
	s.ctrl.timerMu.Unlock()

	s.clock.Advance(2 * time.Hour)
	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *ControllerSuite) TestStaleCloseLeavesNextRosterOpen() {
	s.open("Alice")
	s.ctrl.mu.Lock()
	first := s.ctrl.roster.Epoch()
	s.ctrl.mu.Unlock()
	s.clock.Advance(10 * time.Minute)

	// A close left over from the first roster fires while the next one opens
	stale := &closeTask{epoch: first, done: make(chan struct{})}
	stale.timer = s.racing.AfterFunc(time.Second, func() {
		defer close(stale.done)
		s.ctrl.close(s.ctx, stale.epoch)
	})
	s.ctrl.timerMu.Lock()
	s.ctrl.pending = stale
	s.ctrl.timerMu.Unlock()
	s.racing.fireOnStop(time.Second)

	s.open("Bob")

	s.Equal(1, s.racing.firedCount(time.Second))
	s.True(s.ctrl.IsOpen())
	s.Equal([]string{"Bob"}, s.names(s.ctrl.Status().Main))

	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *ControllerSuite) TestCloseForOtherRosterIsIgnored() {
	s.open("Alice")
	s.ctrl.mu.Lock()
	epoch := s.ctrl.roster.Epoch()
	s.ctrl.mu.Unlock()

	s.ctrl.close(s.ctx, epoch+1)
	s.True(s.ctrl.IsOpen())

	count, err := s.store.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ControllerSuite) TestFinishWhenClosed() {
	s.ErrorIs(s.ctrl.Finish(s.ctx), model.ErrNotOpen)
}

func (s *ControllerSuite) TestRosterReopensAfterClose() {
	s.open("Alice")
	s.clock.Advance(10 * time.Minute)

	s.open("Bob")
	view := s.ctrl.Status()
	s.Equal([]string{"Bob"}, s.names(view.Main))
}

// Presence hooks

func (s *ControllerSuite) TestApplyPresence() {
	s.open("Alice\nBob")

	s.True(s.ctrl.ApplyPresence([]string{"Bob"}))
	s.False(s.ctrl.ApplyPresence([]string{"Bob"}))

	view := s.ctrl.Status()
	s.Equal(model.StatusDisconnected, view.Main[0].Status)
	s.Equal(model.StatusConnected, view.Main[1].Status)

	s.True(s.ctrl.ApplyStatus("Alice", model.StatusConnected))
	s.False(s.ctrl.ApplyStatus("Ghost", model.StatusConnected))
}

func (s *ControllerSuite) TestHooksIgnoredWhenClosed() {
	s.False(s.ctrl.ApplyPresence([]string{"Alice"}))
	s.False(s.ctrl.ApplyStatus("Alice", model.StatusConnected))
	_, ok := s.ctrl.StatusOf("Alice")
	s.False(ok)
}

// Capacity tests

func (s *ControllerSuite) TestSetCapacity() {
	s.ErrorIs(s.ctrl.SetCapacity(0), model.ErrInvalidCapacity)
	s.ErrorIs(s.ctrl.SetCapacity(model.MaxCapacity+1), model.ErrInvalidCapacity)
	s.Require().NoError(s.ctrl.SetCapacity(3))
	s.Equal(3, s.ctrl.Capacity())

	s.open("Alice\nBob\nCarol")
	s.Len(s.ctrl.Status().Main, 3)
	s.ErrorIs(s.ctrl.SetCapacity(5), model.ErrRosterOpen)
}
