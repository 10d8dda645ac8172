package storage

import (
	"context"

	"github.com/mcoot/rollcall/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Session operations

	// AppendSession stores a closed session and returns its sequence number.
	// Sequence numbers start at 1 and are never reused.
	AppendSession(ctx context.Context, session *model.StoredSession) (int64, error)
	// ListSessions returns every stored session ordered oldest first
	ListSessions(ctx context.Context) ([]*model.StoredSession, error)
	// CountSessions returns the highest sequence number handed out
	CountSessions(ctx context.Context) (int64, error)

	// Player stats operations
	GetPlayerStats(ctx context.Context, id model.ParticipantID) (*model.PlayerStats, error)
	SavePlayerStats(ctx context.Context, stats *model.PlayerStats) error
	ListPlayerStats(ctx context.Context) ([]*model.PlayerStats, error)

	Close() error
}
