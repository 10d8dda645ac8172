package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/mcoot/rollcall/internal/api/request"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/directory"
)

// ParticipantHandler manages the participant directory
type ParticipantHandler struct {
	directory *directory.Directory
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(dir *directory.Directory) *ParticipantHandler {
	return &ParticipantHandler{directory: dir}
}

// List handles GET /api/v1/participants
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	participants := h.directory.List()
	if participants == nil {
		participants = []model.Participant{}
	}
	response.JSON(w, http.StatusOK, response.Participants{Participants: participants})
}

// Upsert handles PUT /api/v1/participants/{id}
func (h *ParticipantHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	id := model.ParticipantID(mux.Vars(r)["id"])

	var req request.UpsertParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	p := model.Participant{
		ID:          id,
		Username:    req.Username,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Roles:       lo.Map(req.Roles, func(r string, _ int) model.RoleID { return model.RoleID(r) }),
	}
	h.directory.Upsert(p)
	response.JSON(w, http.StatusOK, p)
}
