package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response. Roster state changes from one request to
// the next, so responses are never cached.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// AcceptedCommand acknowledges a roster command that runs in the background
func AcceptedCommand(w http.ResponseWriter, command string) {
	JSON(w, http.StatusAccepted, Accepted{Status: "accepted", Command: command})
}

// NoContent writes a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
