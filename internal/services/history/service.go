package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/metrics"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/display"
	"github.com/mcoot/rollcall/internal/storage"
)

// Directory resolves roster names to participants
type Directory interface {
	Resolve(ctx context.Context, name string) (*model.Participant, error)
	IsEligible(ctx context.Context, id model.ParticipantID) (bool, error)
}

// Config holds history service settings
type Config struct {
	// StatsChannel receives the attendance report after every close
	StatsChannel model.ChannelID
	StatsTitle   string

	// HistoryChannel receives replays of past sessions
	HistoryChannel model.ChannelID

	// Append retries
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns default history configuration
func DefaultConfig() Config {
	return Config{
		StatsChannel:   "stats",
		StatsTitle:     "📊 Attendance",
		HistoryChannel: "history",
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Service persists closed sessions and maintains per-participant stats
type Service struct {
	storage   storage.Storage
	directory Directory
	target    display.Target
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger

	// finalizeMu serializes Finalize so stats updates never interleave
	finalizeMu sync.Mutex

	reportMu   sync.Mutex
	reportRefs []model.MessageRef
}

// New creates a history service
func New(store storage.Storage, directory Directory, target display.Target, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.StatsChannel == "" {
		cfg.StatsChannel = defaults.StatsChannel
	}
	if cfg.StatsTitle == "" {
		cfg.StatsTitle = defaults.StatsTitle
	}
	if cfg.HistoryChannel == "" {
		cfg.HistoryChannel = defaults.HistoryChannel
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	return &Service{
		storage:   store,
		directory: directory,
		target:    target,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "history")),
	}
}

// Finalize appends the closed roster as a session record and folds it
// into every eligible participant's stats. A failure to append returns
// an error wrapping model.ErrPersistence and leaves stats untouched.
func (s *Service) Finalize(ctx context.Context, snap model.RosterSnapshot, mainRef, reserveRef model.MessageRef) (*model.SessionRecord, error) {
	s.finalizeMu.Lock()
	defer s.finalizeMu.Unlock()

	now := s.clock.Now()
	record := &model.SessionRecord{
		ID:                model.SessionID(uuid.NewString()),
		ClosedAt:          now,
		Entries:           snap.Entries,
		Capacity:          snap.Capacity,
		MainDisplayRef:    mainRef,
		ReserveDisplayRef: reserveRef,
	}

	stored, err := record.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	seq, err := s.appendWithRetry(ctx, stored)
	if err != nil {
		metrics.PersistenceFailures.Inc()
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	record.Seq = seq
	metrics.SessionsPersisted.Inc()

	s.logger.Info("session persisted",
		slog.String("session_id", string(record.ID)),
		slog.Int64("seq", seq),
		slog.Int("entries", len(record.Entries)),
	)

	s.recordAttendance(ctx, record)

	if err := s.recomputeAll(ctx, now); err != nil {
		s.logger.Error("failed to recompute stats", slog.Any("error", err))
	}
	return record, nil
}

func (s *Service) appendWithRetry(ctx context.Context, stored *model.StoredSession) (int64, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.InitialBackoff
	policy.MaxInterval = s.cfg.MaxBackoff

	var seq int64
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		seq, err = s.storage.AppendSession(ctx, stored)
		if err != nil {
			s.logger.Warn("session append failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.cfg.MaxRetries), ctx))
	return seq, err
}

func (s *Service) recordAttendance(ctx context.Context, record *model.SessionRecord) {
	seen := make(map[model.ParticipantID]bool, len(record.Entries))

	for _, entry := range record.Entries {
		participant, err := s.directory.Resolve(ctx, entry.Name)
		if err != nil {
			s.logger.Warn("roster entry not in directory, not counted",
				slog.String("name", entry.Name),
				slog.Any("error", err),
			)
			continue
		}

		eligible, err := s.directory.IsEligible(ctx, participant.ID)
		if err != nil || !eligible {
			if err == nil {
				err = model.ErrNotEligible
			}
			s.logger.Warn("participant not eligible, not counted",
				slog.String("name", entry.Name),
				slog.String("participant_id", string(participant.ID)),
				slog.Any("error", err),
			)
			continue
		}

		if seen[participant.ID] {
			s.logger.Warn("participant appears twice on roster, counted once",
				slog.String("name", entry.Name),
				slog.String("participant_id", string(participant.ID)),
			)
			continue
		}
		seen[participant.ID] = true

		if err := s.recordOne(ctx, participant, entry.Status, record.ClosedAt); err != nil {
			s.logger.Error("failed to update participant stats",
				slog.String("participant_id", string(participant.ID)),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Service) recordOne(ctx context.Context, participant *model.Participant, status model.Status, closedAt time.Time) error {
	stats, err := s.storage.GetPlayerStats(ctx, participant.ID)
	if err != nil {
		if !errors.Is(err, model.ErrPlayerStatsNotFound) {
			return err
		}
		stats = model.NewPlayerStats(participant.ID, participant.DisplayName)
	}
	if participant.DisplayName != "" {
		stats.DisplayName = participant.DisplayName
	}
	stats.Record(status, closedAt)
	stats.UpdatedAt = closedAt
	return s.storage.SavePlayerStats(ctx, stats)
}

// recomputeAll refreshes the percentages of every stats row against the
// total number of sessions ever held
func (s *Service) recomputeAll(ctx context.Context, now time.Time) error {
	total, err := s.storage.CountSessions(ctx)
	if err != nil {
		return err
	}
	all, err := s.storage.ListPlayerStats(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, st := range all {
		st.Recompute(total)
		st.UpdatedAt = now
		if err := s.storage.SavePlayerStats(ctx, st); err != nil {
			errs = append(errs, fmt.Errorf("participant %s: %w", st.ParticipantID, err))
		}
	}
	return errors.Join(errs...)
}

// PastSessions returns every stored session, oldest first. Malformed
// rows are logged and skipped.
func (s *Service) PastSessions(ctx context.Context) ([]*model.SessionRecord, error) {
	stored, err := s.storage.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*model.SessionRecord, 0, len(stored))
	for _, row := range stored {
		record, err := row.Decode()
		if err != nil {
			s.logger.Warn("skipping malformed session",
				slog.Int64("seq", row.Seq),
				slog.Bool("malformed", errors.Is(err, model.ErrMalformedRecord)),
				slog.Any("error", err),
			)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// PublishPastSessions replays every past session to the history channel
// and returns how many were shown
func (s *Service) PublishPastSessions(ctx context.Context) (int, error) {
	records, err := s.PastSessions(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		if _, err := s.target.Send(ctx, s.cfg.HistoryChannel, display.Notice("No past sessions recorded.")); err != nil {
			return 0, err
		}
		return 0, nil
	}

	for _, record := range records {
		rendered := display.RenderHistorical(record)
		if _, err := s.target.Send(ctx, s.cfg.HistoryChannel, rendered.Main); err != nil {
			return 0, err
		}
		if rendered.Reserve != nil {
			if _, err := s.target.Send(ctx, s.cfg.HistoryChannel, *rendered.Reserve); err != nil {
				return 0, err
			}
		}
	}
	return len(records), nil
}

// Stats returns every participant's stats and the total session count
func (s *Service) Stats(ctx context.Context) ([]*model.PlayerStats, int64, error) {
	total, err := s.storage.CountSessions(ctx)
	if err != nil {
		return nil, 0, err
	}
	all, err := s.storage.ListPlayerStats(ctx)
	if err != nil {
		return nil, 0, err
	}
	return all, total, nil
}

// StatsReport renders the attendance report
func (s *Service) StatsReport(ctx context.Context) ([]model.Message, error) {
	all, total, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return BuildReport(s.cfg.StatsTitle, all, total), nil
}

// PublishReport replaces the previously published report on the stats
// channel with a fresh one
func (s *Service) PublishReport(ctx context.Context) error {
	messages, err := s.StatsReport(ctx)
	if err != nil {
		return err
	}

	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	for _, ref := range s.reportRefs {
		if err := s.target.Delete(ctx, ref); err != nil {
			s.logger.Warn("failed to delete previous report message",
				slog.String("ref", string(ref)),
				slog.Any("error", err),
			)
		}
	}
	s.reportRefs = nil

	for _, msg := range messages {
		ref, err := s.target.Send(ctx, s.cfg.StatsChannel, msg)
		if err != nil {
			return err
		}
		s.reportRefs = append(s.reportRefs, ref)
	}
	return nil
}
