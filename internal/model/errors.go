package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Roster errors
	ErrAlreadyOpen      = errors.New("roster is already open")
	ErrNotOpen          = errors.New("no roster is open")
	ErrRosterOpen       = errors.New("operation not allowed while a roster is open")
	ErrEmptyRoster      = errors.New("roster has no entries")
	ErrDuplicate        = errors.New("duplicate roster entry")
	ErrInvalidCapacity  = errors.New("capacity must be between 1 and 50")
	ErrTimeout          = errors.New("timed out waiting for input")
	ErrInvalidAddMode   = errors.New("invalid add mode")
	ErrEntryNameMissing = errors.New("entry name is required")

	// History errors
	ErrPersistence         = errors.New("failed to persist session")
	ErrMalformedRecord     = errors.New("malformed historical record")
	ErrPlayerStatsNotFound = errors.New("player stats not found")

	// Participant errors
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotEligible         = errors.New("participant lacks the required role")
)

// DuplicateError names the entry that caused a batch to be rejected
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%q is already on the roster", e.Name)
}

// Unwrap lets errors.Is match ErrDuplicate
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}
