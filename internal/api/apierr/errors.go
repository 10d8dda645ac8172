package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeRosterAlreadyOpen   = "ROSTER_ALREADY_OPEN"
	CodeRosterNotOpen       = "ROSTER_NOT_OPEN"
	CodeRosterOpen          = "ROSTER_OPEN"
	CodeEmptyRoster         = "EMPTY_ROSTER"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeInvalidCapacity     = "INVALID_CAPACITY"
	CodeInvalidAddMode      = "INVALID_ADD_MODE"
	CodeEntryNameMissing    = "ENTRY_NAME_MISSING"
	CodeTimeout             = "TIMEOUT"
	CodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	CodeMessageNotFound     = "MESSAGE_NOT_FOUND"
	CodePersistence         = "PERSISTENCE_FAILURE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var dup *model.DuplicateError
	if errors.As(err, &dup) {
		return &httpError{http.StatusConflict, APIError{CodeDuplicateEntry, dup.Error()}}
	}

	switch {
	// Roster errors
	case errors.Is(err, model.ErrAlreadyOpen):
		return &httpError{http.StatusConflict, APIError{CodeRosterAlreadyOpen, "A roster is already open"}}
	case errors.Is(err, model.ErrNotOpen):
		return &httpError{http.StatusConflict, APIError{CodeRosterNotOpen, "No roster is open"}}
	case errors.Is(err, model.ErrRosterOpen):
		return &httpError{http.StatusConflict, APIError{CodeRosterOpen, "Not allowed while a roster is open"}}
	case errors.Is(err, model.ErrEmptyRoster):
		return &httpError{http.StatusConflict, APIError{CodeEmptyRoster, "The roster has no entries"}}
	case errors.Is(err, model.ErrInvalidCapacity):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidCapacity, "Capacity must be between 1 and 50"}}
	case errors.Is(err, model.ErrInvalidAddMode):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidAddMode, "Mode must be manual or automatic"}}
	case errors.Is(err, model.ErrEntryNameMissing):
		return &httpError{http.StatusBadRequest, APIError{CodeEntryNameMissing, "A name is required"}}
	case errors.Is(err, model.ErrTimeout):
		return &httpError{http.StatusRequestTimeout, APIError{CodeTimeout, "Timed out waiting for input"}}

	// History and directory errors
	case errors.Is(err, model.ErrParticipantNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeParticipantNotFound, "Participant not found"}}
	case errors.Is(err, model.ErrPersistence):
		return &httpError{http.StatusServiceUnavailable, APIError{CodePersistence, "Storage is unavailable"}}

	// Auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewNotFoundError creates a not found error for a display message
func NewNotFoundError(message string) error {
	return &httpError{http.StatusNotFound, APIError{CodeMessageNotFound, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
