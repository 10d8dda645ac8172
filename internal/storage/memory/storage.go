package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	sessions []*model.StoredSession
	seq      int64
	stats    map[model.ParticipantID]*model.PlayerStats
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		stats: make(map[model.ParticipantID]*model.PlayerStats),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) AppendSession(ctx context.Context, session *model.StoredSession) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	stored := *session
	stored.Seq = s.seq
	s.sessions = append(s.sessions, &stored)
	return s.seq, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.StoredSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.StoredSession, len(s.sessions))
	for i, session := range s.sessions {
		cp := *session
		result[i] = &cp
	}
	return result, nil
}

func (s *Storage) CountSessions(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, nil
}

// InjectRawSession stores a session row verbatim, bypassing encoding.
// Tests use it to plant malformed historical rows.
func (s *Storage) InjectRawSession(session model.StoredSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	session.Seq = s.seq
	s.sessions = append(s.sessions, &session)
}

// Player stats operations

func (s *Storage) GetPlayerStats(ctx context.Context, id model.ParticipantID) (*model.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[id]
	if !ok {
		return nil, model.ErrPlayerStatsNotFound
	}
	cp := *stats
	return &cp, nil
}

func (s *Storage) SavePlayerStats(ctx context.Context, stats *model.PlayerStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *stats
	s.stats[stats.ParticipantID] = &cp
	return nil
}

func (s *Storage) ListPlayerStats(ctx context.Context) ([]*model.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.PlayerStats, 0, len(s.stats))
	for _, stats := range s.stats {
		cp := *stats
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ParticipantID < result[j].ParticipantID
	})
	return result, nil
}

func (s *Storage) Close() error {
	return nil
}
