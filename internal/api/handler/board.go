package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/web/sse"
)

// BoardHandler serves the display board and its event stream
type BoardHandler struct {
	board *sse.Board
	hubs  *sse.HubManager
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(board *sse.Board, hubs *sse.HubManager) *BoardHandler {
	return &BoardHandler{board: board, hubs: hubs}
}

// Get handles GET /api/v1/board/{channel}
func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
	channel := model.ChannelID(mux.Vars(r)["channel"])

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	messages := h.board.Messages(channel, limit)
	if messages == nil {
		messages = []model.BoardMessage{}
	}
	response.JSON(w, http.StatusOK, response.Board{Channel: string(channel), Messages: messages})
}

// Events handles GET /api/v1/events?channel=...
func (h *BoardHandler) Events(w http.ResponseWriter, r *http.Request) {
	channel := model.ChannelID(r.URL.Query().Get("channel"))
	if channel == "" {
		WriteError(w, NewInvalidRequestError("channel is required"))
		return
	}

	hub := h.hubs.GetOrCreateHub(channel)
	sse.ServeSSE(w, r, hub, r.RemoteAddr, h.board.Snapshot(channel))
}
