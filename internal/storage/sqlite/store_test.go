package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rollcall/internal/model"
)

type StorageSuite struct {
	suite.Suite
	path    string
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "rollcall.db")
	storage, err := New(Config{Path: s.path, PoolSize: 2})
	s.Require().NoError(err)
	s.storage = storage
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) TestNewRequiresPath() {
	_, err := New(Config{})
	s.Error(err)
}

// Session tests

func (s *StorageSuite) TestAppendAndListSessions() {
	closedAt := time.Date(2024, 3, 9, 22, 15, 0, 0, time.UTC)
	record := &model.SessionRecord{
		ID:       "session-1",
		ClosedAt: closedAt,
		Capacity: 1,
		Entries: []model.Entry{
			{Name: "alice", Status: model.StatusConnected},
			{Name: "bob", Status: model.StatusDisconnected},
		},
		MainDisplayRef: "msg_main",
	}
	stored, err := record.Encode()
	s.Require().NoError(err)

	seq, err := s.storage.AppendSession(s.ctx, stored)
	s.Require().NoError(err)
	s.Equal(int64(1), seq)

	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)

	decoded, err := sessions[0].Decode()
	s.Require().NoError(err)
	s.Equal(model.SessionID("session-1"), decoded.ID)
	s.True(closedAt.Equal(decoded.ClosedAt))
	s.Equal(record.Entries, decoded.Entries)
	s.Equal(model.MessageRef("msg_main"), decoded.MainDisplayRef)
	s.Empty(decoded.ReserveDisplayRef)
}

func (s *StorageSuite) TestSequenceIncreases() {
	for i, id := range []model.SessionID{"a", "b", "c"} {
		seq, err := s.storage.AppendSession(s.ctx, &model.StoredSession{ID: id, Entries: "[]"})
		s.Require().NoError(err)
		s.Equal(int64(i+1), seq)
	}

	count, err := s.storage.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.SessionID("a"), sessions[0].ID)
	s.Equal(model.SessionID("c"), sessions[2].ID)
}

func (s *StorageSuite) TestDataSurvivesReopen() {
	_, err := s.storage.AppendSession(s.ctx, &model.StoredSession{ID: "a", Entries: "[]"})
	s.Require().NoError(err)
	s.Require().NoError(s.storage.SavePlayerStats(s.ctx, model.NewPlayerStats("p1", "Alice")))
	s.Require().NoError(s.storage.Close())

	reopened, err := New(Config{Path: s.path})
	s.Require().NoError(err)
	s.storage = reopened

	count, err := s.storage.CountSessions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	stats, err := s.storage.GetPlayerStats(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Alice", stats.DisplayName)
}

func (s *StorageSuite) TestMalformedEntriesStoredVerbatim() {
	_, err := s.storage.AppendSession(s.ctx, &model.StoredSession{ID: "bad", Entries: `{"alice": "maybe"}`})
	s.Require().NoError(err)

	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(`{"alice": "maybe"}`, sessions[0].Entries)

	_, err = sessions[0].Decode()
	s.ErrorIs(err, model.ErrMalformedRecord)
}

// Player stats tests

func (s *StorageSuite) TestSaveAndGetPlayerStats() {
	updatedAt := time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)
	stats := model.NewPlayerStats("p1", "Alice")
	stats.Record(model.StatusDisconnected, updatedAt)
	stats.Recompute(2)
	stats.UpdatedAt = updatedAt

	s.Require().NoError(s.storage.SavePlayerStats(s.ctx, stats))

	retrieved, err := s.storage.GetPlayerStats(s.ctx, "p1")
	s.Require().NoError(err)
	s.True(updatedAt.Equal(retrieved.UpdatedAt))
	retrieved.UpdatedAt = stats.UpdatedAt
	s.Equal(stats, retrieved)
}

func (s *StorageSuite) TestGetPlayerStatsNotFound() {
	_, err := s.storage.GetPlayerStats(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerStatsNotFound)
}

func (s *StorageSuite) TestSavePlayerStatsReplaces() {
	stats := model.NewPlayerStats("p1", "Alice")
	s.Require().NoError(s.storage.SavePlayerStats(s.ctx, stats))
	stats.TotalSignups = 3
	stats.DisplayName = "Alice B"
	s.Require().NoError(s.storage.SavePlayerStats(s.ctx, stats))

	all, err := s.storage.ListPlayerStats(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(3, all[0].TotalSignups)
	s.Equal("Alice B", all[0].DisplayName)
}

func (s *StorageSuite) TestListPlayerStatsSorted() {
	_ = s.storage.SavePlayerStats(s.ctx, model.NewPlayerStats("p2", "Bob"))
	_ = s.storage.SavePlayerStats(s.ctx, model.NewPlayerStats("p1", "Alice"))

	all, err := s.storage.ListPlayerStats(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(model.ParticipantID("p1"), all[0].ParticipantID)
	s.Equal(model.ParticipantID("p2"), all[1].ParticipantID)
}
