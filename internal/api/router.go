package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/rollcall/internal/api/handler"
	"github.com/mcoot/rollcall/internal/api/middleware"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/services/auth"
	"github.com/mcoot/rollcall/internal/services/directory"
	"github.com/mcoot/rollcall/internal/services/history"
	"github.com/mcoot/rollcall/internal/services/input"
	"github.com/mcoot/rollcall/internal/services/presence"
	"github.com/mcoot/rollcall/internal/services/roster"
	"github.com/mcoot/rollcall/internal/web/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	Clock            clock.Clock
	AuthService      *auth.Service
	RosterController *roster.Controller
	Runner           *handler.Runner
	Input            *input.Collector
	Presence         *presence.Tracker
	History          *history.Service
	Directory        *directory.Directory
	Board            *sse.Board
	HubManager       *sse.HubManager

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(cfg.AuthService)
	rosterHandler := handler.NewRosterHandler(cfg.RosterController, cfg.Runner)
	inputHandler := handler.NewInputHandler(cfg.Input)
	presenceHandler := handler.NewPresenceHandler(cfg.Presence, cfg.Clock)
	historyHandler := handler.NewHistoryHandler(cfg.History)
	boardHandler := handler.NewBoardHandler(cfg.Board, cfg.HubManager)
	participantHandler := handler.NewParticipantHandler(cfg.Directory)

	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Public routes
	api.HandleFunc("/health", healthHandler(cfg.RosterController)).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/roster", rosterHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/history", historyHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/stats", historyHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/board/{channel}", boardHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/events", boardHandler.Events).Methods(http.MethodGet)

	// Coordinator routes
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/roster/open", rosterHandler.Open).Methods(http.MethodPost)
	protected.HandleFunc("/roster/add", rosterHandler.Add).Methods(http.MethodPost)
	protected.HandleFunc("/roster/cancel", rosterHandler.Cancel).Methods(http.MethodPost)
	protected.HandleFunc("/roster/finish", rosterHandler.Finish).Methods(http.MethodPost)
	protected.HandleFunc("/roster/capacity", rosterHandler.SetCapacity).Methods(http.MethodPut)
	protected.HandleFunc("/input", inputHandler.Submit).Methods(http.MethodPost)
	protected.HandleFunc("/presence", presenceHandler.Update).Methods(http.MethodPost)
	protected.HandleFunc("/presence", presenceHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/history/publish", historyHandler.Publish).Methods(http.MethodPost)
	protected.HandleFunc("/stats/publish", historyHandler.PublishStats).Methods(http.MethodPost)
	protected.HandleFunc("/participants", participantHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/participants/{id}", participantHandler.Upsert).Methods(http.MethodPut)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

func healthHandler(controller *roster.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		view := controller.Status()
		response.JSON(w, http.StatusOK, response.Health{
			Status:  "ok",
			Roster:  string(view.State),
			Entries: len(view.Main) + len(view.Reserve),
		})
	}
}
