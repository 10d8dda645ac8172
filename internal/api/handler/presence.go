package handler

import (
	"net/http"
	"strings"

	"github.com/mcoot/rollcall/internal/api/request"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/presence"
)

// PresenceHandler receives presence updates from the gateway
type PresenceHandler struct {
	tracker *presence.Tracker
	clock   clock.Clock
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(tracker *presence.Tracker, clk clock.Clock) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, clock: clk}
}

// Update handles POST /api/v1/presence
func (h *PresenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req request.PresenceRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}
	if req.Present && req.ChannelID == "" {
		WriteError(w, NewInvalidRequestError("channel_id is required when present"))
		return
	}

	h.tracker.Update(model.PresenceEvent{
		Name:      name,
		ChannelID: model.ChannelID(req.ChannelID),
		Present:   req.Present,
		At:        h.clock.Now(),
	})
	response.NoContent(w)
}

// List handles GET /api/v1/presence
func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	present, err := h.tracker.CurrentlyPresent(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if present == nil {
		present = []string{}
	}
	response.JSON(w, http.StatusOK, response.Presence{Present: present})
}
