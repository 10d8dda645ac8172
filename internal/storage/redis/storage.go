package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		keys:   keys{prefix: prefix},
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Session operations

func (s *Storage) AppendSession(ctx context.Context, session *model.StoredSession) (int64, error) {
	seq, err := s.client.Incr(ctx, s.keys.sessionSeq()).Result()
	if err != nil {
		return 0, err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.session(seq), map[string]any{
		fieldID:         string(session.ID),
		fieldClosedAt:   session.ClosedAt.UTC().Format(time.RFC3339Nano),
		fieldEntries:    session.Entries,
		fieldCapacity:   session.Capacity,
		fieldMainRef:    string(session.MainDisplayRef),
		fieldReserveRef: string(session.ReserveDisplayRef),
	})
	pipe.RPush(ctx, s.keys.sessionIndex(), seq)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.StoredSession, error) {
	seqs, err := s.client.LRange(ctx, s.keys.sessionIndex(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return []*model.StoredSession{}, nil
	}

	// Fetch all session hashes in one round trip
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(seqs))
	parsed := make([]int64, len(seqs))
	for i, raw := range seqs {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session index entry %q: %w", raw, err)
		}
		parsed[i] = seq
		cmds[i] = pipe.HGetAll(ctx, s.keys.session(seq))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	sessions := make([]*model.StoredSession, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		sessions = append(sessions, sessionFromHash(parsed[i], fields))
	}
	return sessions, nil
}

func (s *Storage) CountSessions(ctx context.Context) (int64, error) {
	count, err := s.client.Get(ctx, s.keys.sessionSeq()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// sessionFromHash tolerates bad scalar fields; only the entries payload is
// validated, later, when the session is decoded.
func sessionFromHash(seq int64, fields map[string]string) *model.StoredSession {
	session := &model.StoredSession{
		ID:                model.SessionID(fields[fieldID]),
		Seq:               seq,
		Entries:           fields[fieldEntries],
		MainDisplayRef:    model.MessageRef(fields[fieldMainRef]),
		ReserveDisplayRef: model.MessageRef(fields[fieldReserveRef]),
	}
	if t, err := time.Parse(time.RFC3339Nano, fields[fieldClosedAt]); err == nil {
		session.ClosedAt = t
	}
	if c, err := strconv.Atoi(fields[fieldCapacity]); err == nil {
		session.Capacity = c
	}
	return session
}

// Player stats operations

func (s *Storage) GetPlayerStats(ctx context.Context, id model.ParticipantID) (*model.PlayerStats, error) {
	data, err := s.client.HGet(ctx, s.keys.playerStats(), string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerStatsNotFound
		}
		return nil, err
	}

	var stats model.PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Storage) SavePlayerStats(ctx context.Context, stats *model.PlayerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.keys.playerStats(), string(stats.ParticipantID), data).Err()
}

func (s *Storage) ListPlayerStats(ctx context.Context) ([]*model.PlayerStats, error) {
	values, err := s.client.HGetAll(ctx, s.keys.playerStats()).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*model.PlayerStats, 0, len(values))
	for id, data := range values {
		var stats model.PlayerStats
		if err := json.Unmarshal([]byte(data), &stats); err != nil {
			return nil, fmt.Errorf("player stats %s: %w", id, err)
		}
		result = append(result, &stats)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ParticipantID < result[j].ParticipantID
	})
	return result, nil
}
