package handler

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/history"
)

// HistoryHandler serves past sessions and attendance stats
type HistoryHandler struct {
	history *history.Service
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history *history.Service) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /api/v1/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.PastSessions(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	sessions := lo.Map(records, func(rec *model.SessionRecord, _ int) response.Session {
		return response.SessionFromRecord(rec)
	})
	response.JSON(w, http.StatusOK, response.History{Sessions: sessions})
}

// Publish handles POST /api/v1/history/publish
func (h *HistoryHandler) Publish(w http.ResponseWriter, r *http.Request) {
	n, err := h.history.PublishPastSessions(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Published{Published: n})
}

// Stats handles GET /api/v1/stats
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, total, err := h.history.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if stats == nil {
		stats = []*model.PlayerStats{}
	}
	response.JSON(w, http.StatusOK, response.Stats{TotalSessions: total, Players: stats})
}

// PublishStats handles POST /api/v1/stats/publish
func (h *HistoryHandler) PublishStats(w http.ResponseWriter, r *http.Request) {
	if err := h.history.PublishReport(r.Context()); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}
