// Package sqlite is a durable single-file storage backend.
//
// Sessions are appended to an AUTOINCREMENT table so their sequence
// numbers never repeat, and entries stay in their serialized form so
// malformed historical rows surface at decode time rather than here.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
	id                  TEXT NOT NULL,
	closed_at           INTEGER NOT NULL,
	entries             TEXT NOT NULL,
	capacity            INTEGER NOT NULL,
	main_display_ref    TEXT NOT NULL DEFAULT '',
	reserve_display_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS player_stats (
	participant_id     TEXT PRIMARY KEY,
	display_name       TEXT NOT NULL,
	total_signups      INTEGER NOT NULL,
	total_connected    INTEGER NOT NULL,
	total_disconnected INTEGER NOT NULL,
	last_played_date   TEXT NOT NULL,
	connected_pct      REAL NOT NULL,
	absence_pct        REAL NOT NULL,
	updated_at         INTEGER NOT NULL
);
`

// Config holds SQLite storage settings
type Config struct {
	// Path is the database file. The parent directory must exist.
	Path     string
	PoolSize int
	Logger   *slog.Logger
}

// Storage is a SQLite-backed implementation of the storage interface
type Storage struct {
	pool *pool
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// New opens (creating if needed) the database at cfg.Path
func New(cfg Config) (*Storage, error) {
	p, err := openPool(poolConfig{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Storage{pool: p}, nil
}

// Close closes the connection pool
func (s *Storage) Close() error {
	return s.pool.close()
}

// Session operations

func (s *Storage) AppendSession(ctx context.Context, session *model.StoredSession) (seq int64, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `INSERT INTO sessions
		(id, closed_at, entries, capacity, main_display_ref, reserve_display_ref)
		VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			string(session.ID),
			unixNanos(session.ClosedAt),
			session.Entries,
			session.Capacity,
			string(session.MainDisplayRef),
			string(session.ReserveDisplayRef),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert session: %w", err)
	}
	return conn.LastInsertRowID(), nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.StoredSession, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.put(conn)

	sessions := []*model.StoredSession{}
	err = sqlitex.Execute(conn, `SELECT seq, id, closed_at, entries, capacity,
		main_display_ref, reserve_display_ref FROM sessions ORDER BY seq`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			sessions = append(sessions, &model.StoredSession{
				Seq:               stmt.ColumnInt64(0),
				ID:                model.SessionID(stmt.ColumnText(1)),
				ClosedAt:          fromUnixNanos(stmt.ColumnInt64(2)),
				Entries:           stmt.ColumnText(3),
				Capacity:          stmt.ColumnInt(4),
				MainDisplayRef:    model.MessageRef(stmt.ColumnText(5)),
				ReserveDisplayRef: model.MessageRef(stmt.ColumnText(6)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	return sessions, nil
}

func (s *Storage) CountSessions(ctx context.Context) (int64, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.put(conn)

	var count int64
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM sessions", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: count sessions: %w", err)
	}
	return count, nil
}

// Player stats operations

const statsColumns = `participant_id, display_name, total_signups, total_connected,
	total_disconnected, last_played_date, connected_pct, absence_pct, updated_at`

func scanPlayerStats(stmt *sqlite.Stmt) *model.PlayerStats {
	return &model.PlayerStats{
		ParticipantID:     model.ParticipantID(stmt.ColumnText(0)),
		DisplayName:       stmt.ColumnText(1),
		TotalSignups:      stmt.ColumnInt(2),
		TotalConnected:    stmt.ColumnInt(3),
		TotalDisconnected: stmt.ColumnInt(4),
		LastPlayedDate:    stmt.ColumnText(5),
		ConnectedPct:      stmt.ColumnFloat(6),
		AbsencePct:        stmt.ColumnFloat(7),
		UpdatedAt:         fromUnixNanos(stmt.ColumnInt64(8)),
	}
}

func (s *Storage) GetPlayerStats(ctx context.Context, id model.ParticipantID) (*model.PlayerStats, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.put(conn)

	var stats *model.PlayerStats
	err = sqlitex.Execute(conn, "SELECT "+statsColumns+" FROM player_stats WHERE participant_id = ?", &sqlitex.ExecOptions{
		Args: []any{string(id)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats = scanPlayerStats(stmt)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: get player stats: %w", err)
	}
	if stats == nil {
		return nil, model.ErrPlayerStatsNotFound
	}
	return stats, nil
}

func (s *Storage) SavePlayerStats(ctx context.Context, stats *model.PlayerStats) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.put(conn)

	err = sqlitex.Execute(conn, "INSERT OR REPLACE INTO player_stats ("+statsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			string(stats.ParticipantID),
			stats.DisplayName,
			stats.TotalSignups,
			stats.TotalConnected,
			stats.TotalDisconnected,
			stats.LastPlayedDate,
			stats.ConnectedPct,
			stats.AbsencePct,
			unixNanos(stats.UpdatedAt),
		},
	})
	if err != nil {
		return fmt.Errorf("sqlite: save player stats: %w", err)
	}
	return nil
}

func (s *Storage) ListPlayerStats(ctx context.Context) ([]*model.PlayerStats, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.put(conn)

	result := []*model.PlayerStats{}
	err = sqlitex.Execute(conn, "SELECT "+statsColumns+" FROM player_stats ORDER BY participant_id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			result = append(result, scanPlayerStats(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: list player stats: %w", err)
	}
	return result, nil
}

// Zero times are stored as 0 so they read back as the zero time.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
