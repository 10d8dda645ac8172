package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/rollcall/internal/api/handler"
	"github.com/mcoot/rollcall/internal/config"
	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/dependencies/random"
	"github.com/mcoot/rollcall/internal/metrics"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/auth"
	"github.com/mcoot/rollcall/internal/services/directory"
	"github.com/mcoot/rollcall/internal/services/history"
	"github.com/mcoot/rollcall/internal/services/input"
	"github.com/mcoot/rollcall/internal/services/presence"
	"github.com/mcoot/rollcall/internal/services/reminder"
	"github.com/mcoot/rollcall/internal/services/roster"
	"github.com/mcoot/rollcall/internal/storage"
	"github.com/mcoot/rollcall/internal/storage/memory"
	redisstorage "github.com/mcoot/rollcall/internal/storage/redis"
	"github.com/mcoot/rollcall/internal/storage/sqlite"
	"github.com/mcoot/rollcall/internal/web/sse"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Display
	HubManager *sse.HubManager
	Board      *sse.Board

	// Services
	Directory        *directory.Directory
	HistoryService   *history.Service
	ReminderService  *reminder.Service
	PresenceTracker  *presence.Tracker
	InputCollector   *input.Collector
	RosterController *roster.Controller
	Reconciler       *presence.Reconciler
	AuthService      *auth.Service

	// Runner executes asynchronous API commands
	Runner *handler.Runner

	Gatherer prometheus.Gatherer
	Logger   *slog.Logger

	noticeChannel   model.ChannelID
	noticeRetention time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a new application with all dependencies wired
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(cfg, store, clock.New(), random.New(), logger), nil
}

func newStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "", config.StorageMemory:
		return memory.New(), nil
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		if cfg.Storage.KeyPrefix != "" {
			redisCfg.KeyPrefix = cfg.Storage.KeyPrefix
		}
		store, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, nil
	case config.StorageSQLite:
		store, err := sqlite.New(sqlite.Config{Path: cfg.Storage.SQLitePath, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, errors.New("invalid storage type: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(cfg *config.Config, store storage.Storage, clk clock.Clock, rnd random.Random, logger *slog.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	hubManager := sse.NewHubManager(logger)
	board := sse.NewBoard(hubManager, clk, rnd, logger)

	dir := directory.New(cfg.ParticipantRoleID, cfg.Participants)

	historyCfg := history.DefaultConfig()
	historyCfg.StatsChannel = cfg.StatsChannelID
	historyCfg.HistoryChannel = cfg.HistoryChannelID
	if cfg.StatsTitle != "" {
		historyCfg.StatsTitle = cfg.StatsTitle
	}
	historyService := history.New(store, dir, board, clk, historyCfg, logger)

	reminderService := reminder.New(board, dir, clk, reminder.Config{
		Enabled:         cfg.SendReminders,
		Interval:        cfg.ReminderInterval,
		PresenceChannel: cfg.AutoAddChannelID,
		RosterChannel:   cfg.RosterChannelID,
		Community:       cfg.Community,
	}, logger)

	tracker := presence.NewTracker(presence.DefaultEventBuffer, logger)
	collector := input.New(clk, logger)

	controller := roster.NewController(roster.Config{
		Capacity:        cfg.Capacity,
		AutoClose:       cfg.AutoClose,
		FinishDelay:     cfg.FinishDelay,
		InputTimeout:    cfg.InputTimeout,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		RefreshInterval: cfg.RefreshInterval,
		EndToken:        cfg.EndToken,
		ConfirmToken:    cfg.ConfirmToken,
		Channel:         cfg.DisplayChannelID,
	}, roster.Deps{
		Clock:    clk,
		Presence: tracker,
		Input:    collector,
		Target:   board,
		History:  historyService,
		Reminder: reminderService,
		Logger:   logger,
	})

	reconciler := presence.NewReconciler(controller, tracker, clk, presence.Config{
		AutoAddChannel: cfg.AutoAddChannelID,
		SweepInterval:  cfg.SweepInterval,
	}, logger)

	authCfg := auth.DefaultConfig()
	if cfg.Auth.SessionDuration > 0 {
		authCfg.SessionDuration = cfg.Auth.SessionDuration
	}
	authCfg.Coordinators = cfg.Auth.Coordinators
	authCfg.TokenHash = cfg.Auth.TokenHash
	authService := auth.New(clk, rnd, authCfg)

	metrics.Register(prometheus.DefaultRegisterer)

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		HubManager:       hubManager,
		Board:            board,
		Directory:        dir,
		HistoryService:   historyService,
		ReminderService:  reminderService,
		PresenceTracker:  tracker,
		InputCollector:   collector,
		RosterController: controller,
		Reconciler:       reconciler,
		AuthService:      authService,
		Runner:           handler.NewRunner(ctx, logger),
		Gatherer:         prometheus.DefaultGatherer,
		Logger:           logger,
		noticeChannel:    cfg.DisplayChannelID,
		noticeRetention:  cfg.NoticeRetention,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Housekeep drops expired coordinator sessions and idle hubs, and prunes
// old notices from the display channel. It returns the number of notices
// pruned.
func (a *App) Housekeep(ctx context.Context) int {
	a.AuthService.CleanExpiredSessions()
	a.HubManager.CleanupEmptyHubs()
	return a.Board.PruneNotices(ctx, a.noticeChannel, a.Clock.Now().Add(-a.noticeRetention))
}

// Context is cancelled when the app closes
func (a *App) Context() context.Context {
	return a.ctx
}

// Close stops background commands and the pending close, then closes
// storage. A roster that is still open is left open and unpersisted.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.cancel()
		a.Runner.Wait()
		a.RosterController.Shutdown()
		a.HubManager.CloseAll()
		err = a.Storage.Close()
	})
	return err
}
