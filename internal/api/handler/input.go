package handler

import (
	"net/http"
	"strings"

	"github.com/mcoot/rollcall/internal/api/request"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/services/input"
)

// InputHandler relays coordinator messages to waiting roster commands
type InputHandler struct {
	collector *input.Collector
}

// NewInputHandler creates a new input handler
func NewInputHandler(collector *input.Collector) *InputHandler {
	return &InputHandler{collector: collector}
}

// Submit handles POST /api/v1/input
func (h *InputHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req request.InputRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, NewInvalidRequestError("text is required"))
		return
	}

	delivered := h.collector.Submit(req.Text)
	response.JSON(w, http.StatusOK, response.InputResult{Delivered: delivered})
}
