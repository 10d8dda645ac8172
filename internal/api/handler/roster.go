package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/rollcall/internal/api/middleware"
	"github.com/mcoot/rollcall/internal/api/request"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/roster"
)

// RosterHandler handles roster lifecycle endpoints
type RosterHandler struct {
	controller *roster.Controller
	runner     *Runner
}

// NewRosterHandler creates a new roster handler
func NewRosterHandler(controller *roster.Controller, runner *Runner) *RosterHandler {
	return &RosterHandler{
		controller: controller,
		runner:     runner,
	}
}

// Get handles GET /api/v1/roster
func (h *RosterHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.RosterFromView(h.controller.Status()))
}

// Open handles POST /api/v1/roster/open
func (h *RosterHandler) Open(w http.ResponseWriter, r *http.Request) {
	if h.controller.IsOpen() {
		WriteError(w, model.ErrAlreadyOpen)
		return
	}
	h.start(w, r, "open", h.controller.Open)
}

// Add handles POST /api/v1/roster/add
func (h *RosterHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req request.AddEntriesRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	mode := model.AddMode(req.Mode)
	if mode == "" {
		mode = model.AddModeManual
	}
	if !mode.Valid() {
		WriteError(w, model.ErrInvalidAddMode)
		return
	}

	if mode == model.AddModeAutomatic {
		added, err := h.controller.AddEntries(r.Context(), mode, req.Name)
		if err != nil {
			WriteError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, response.AddResult{Name: req.Name, Added: added})
		return
	}

	if !h.controller.IsOpen() {
		WriteError(w, model.ErrNotOpen)
		return
	}
	h.start(w, r, "add", func(ctx context.Context) error {
		_, err := h.controller.AddEntries(ctx, model.AddModeManual, "")
		return err
	})
}

// Cancel handles POST /api/v1/roster/cancel
func (h *RosterHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.controller.IsOpen() {
		WriteError(w, model.ErrNotOpen)
		return
	}
	h.start(w, r, "cancel", h.controller.Cancel)
}

// Finish handles POST /api/v1/roster/finish
func (h *RosterHandler) Finish(w http.ResponseWriter, r *http.Request) {
	if !h.controller.IsOpen() {
		WriteError(w, model.ErrNotOpen)
		return
	}
	h.start(w, r, "finish", h.controller.Finish)
}

// SetCapacity handles PUT /api/v1/roster/capacity
func (h *RosterHandler) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var req request.SetCapacityRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.controller.SetCapacity(req.Capacity); err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RosterFromView(h.controller.Status()))
}

func (h *RosterHandler) start(w http.ResponseWriter, r *http.Request, command string, fn func(context.Context) error) {
	h.runner.Go(command, middleware.Coordinator(r.Context()), fn)
	response.AcceptedCommand(w, command)
}
