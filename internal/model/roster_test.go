package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type RosterSuite struct {
	suite.Suite
	roster *Roster
	now    time.Time
}

func TestRosterSuite(t *testing.T) {
	suite.Run(t, new(RosterSuite))
}

func (s *RosterSuite) SetupTest() {
	s.roster = NewRoster()
	s.now = time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
}

func (s *RosterSuite) open(capacity int) {
	s.Require().NoError(s.roster.Open(capacity, s.now, s.now.Add(time.Hour)))
}

func connectedIf(present ...string) func(string) Status {
	set := make(map[string]bool, len(present))
	for _, p := range present {
		set[p] = true
	}
	return func(name string) Status { return StatusFor(set[name]) }
}

// Open tests

func (s *RosterSuite) TestOpenTransitionsToOpen() {
	s.open(3)
	s.True(s.roster.IsOpen())
	s.Equal(uint64(1), s.roster.Epoch())
}

func (s *RosterSuite) TestOpenWhileOpenFails() {
	s.open(3)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusConnected))

	err := s.roster.Open(5, s.now, s.now)
	s.ErrorIs(err, ErrAlreadyOpen)
	s.Equal(1, s.roster.Len())
	s.Equal(3, s.roster.Snapshot().Capacity)
}

func (s *RosterSuite) TestOpenRejectsInvalidCapacity() {
	s.ErrorIs(s.roster.Open(0, s.now, s.now), ErrInvalidCapacity)
	s.ErrorIs(s.roster.Open(MaxCapacity+1, s.now, s.now), ErrInvalidCapacity)
	s.False(s.roster.IsOpen())
}

func (s *RosterSuite) TestReopenStartsFresh() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusConnected))
	s.roster.Clear()

	s.open(4)
	s.Equal(0, s.roster.Len())
	s.False(s.roster.Has("Alice"))
	s.Equal(uint64(2), s.roster.Epoch())
}

// TryAdd tests

func (s *RosterSuite) TestTryAddRejectsDuplicate() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusConnected))

	err := s.roster.TryAdd("Alice", StatusDisconnected)
	s.ErrorIs(err, ErrDuplicate)
	s.Equal(1, s.roster.Len())
}

func (s *RosterSuite) TestTryAddIsCaseSensitive() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("alice", StatusConnected))
	s.NoError(s.roster.TryAdd("Alice", StatusConnected))
}

func (s *RosterSuite) TestTryAddWhenClosedFails() {
	s.ErrorIs(s.roster.TryAdd("Alice", StatusConnected), ErrNotOpen)
}

// TryAddBatch tests

func (s *RosterSuite) TestBatchRejectedWhenNameAlreadyPresent() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusConnected))

	err := s.roster.TryAddBatch([]string{"Bob", "Alice", "Carol"}, connectedIf())

	var dup *DuplicateError
	s.Require().True(errors.As(err, &dup))
	s.Equal("Alice", dup.Name)
	s.Equal([]string{"Alice"}, s.roster.Names())
}

func (s *RosterSuite) TestBatchRejectedWhenNameRepeatedWithinBatch() {
	s.open(2)

	err := s.roster.TryAddBatch([]string{"Bob", "Carol", "Bob"}, connectedIf())
	s.ErrorIs(err, ErrDuplicate)
	s.Equal(0, s.roster.Len())
}

func (s *RosterSuite) TestBatchStampsStatusAndKeepsOrder() {
	s.open(2)

	err := s.roster.TryAddBatch([]string{"Alice", "Bob", "Carol"}, connectedIf("Alice", "Bob"))
	s.Require().NoError(err)

	main, reserve := s.roster.Split()
	s.Equal([]Entry{{"Alice", StatusConnected}, {"Bob", StatusConnected}}, main)
	s.Equal([]Entry{{"Carol", StatusDisconnected}}, reserve)
}

// SetStatus tests

func (s *RosterSuite) TestSetStatusIgnoresUnknownName() {
	s.open(2)
	s.False(s.roster.SetStatus("Ghost", StatusConnected))
	s.Equal(0, s.roster.Len())
}

func (s *RosterSuite) TestSetStatusReportsChange() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusDisconnected))

	s.True(s.roster.SetStatus("Alice", StatusConnected))
	s.False(s.roster.SetStatus("Alice", StatusConnected))
	s.Equal(StatusConnected, s.roster.Snapshot().Entries[0].Status)
}

func (s *RosterSuite) TestStatusOf() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusConnected))

	st, ok := s.roster.StatusOf("Alice")
	s.True(ok)
	s.Equal(StatusConnected, st)

	_, ok = s.roster.StatusOf("Bob")
	s.False(ok)
}

// Split tests

func (s *RosterSuite) TestSplitSizes() {
	for capacity := 1; capacity <= 4; capacity++ {
		for n := 0; n <= 6; n++ {
			s.Run(fmt.Sprintf("k=%d,n=%d", capacity, n), func() {
				r := NewRoster()
				s.Require().NoError(r.Open(capacity, s.now, s.now))
				names := make([]string, n)
				for i := range names {
					names[i] = fmt.Sprintf("p%d", i)
				}
				s.Require().NoError(r.TryAddBatch(names, connectedIf()))

				main, reserve := r.Split()
				s.Len(main, min(capacity, n))
				s.Len(reserve, max(0, n-capacity))
				for i, e := range append(main, reserve...) {
					s.Equal(names[i], e.Name)
				}
			})
		}
	}
}

// Snapshot tests

func (s *RosterSuite) TestSnapshotIsACopy() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusDisconnected))

	snap := s.roster.Snapshot()
	s.roster.SetStatus("Alice", StatusConnected)

	s.Equal(StatusDisconnected, snap.Entries[0].Status)
	s.Equal(RosterStateOpen, snap.State)
}

func (s *RosterSuite) TestSnapshotCounts() {
	s.open(2)
	s.Require().NoError(s.roster.TryAddBatch([]string{"A", "B", "C"}, connectedIf("B")))

	connected, disconnected := s.roster.Snapshot().Counts()
	s.Equal(1, connected)
	s.Equal(2, disconnected)
}

// Clear tests

func (s *RosterSuite) TestClearEmptiesAndCloses() {
	s.open(2)
	s.Require().NoError(s.roster.TryAdd("Alice", StatusConnected))

	s.roster.Clear()
	s.False(s.roster.IsOpen())
	s.Equal(0, s.roster.Len())
	s.Equal(RosterStateClosed, s.roster.Snapshot().State)
}
