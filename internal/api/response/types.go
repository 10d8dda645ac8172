package response

import (
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/auth"
	"github.com/mcoot/rollcall/internal/services/roster"
)

// AuthResponse is the response for coordinator login
type AuthResponse struct {
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Username:     s.Username,
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Entry is one roster entry
type Entry struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

func entriesFromModel(entries []model.Entry, offset int) []Entry {
	return lo.Map(entries, func(e model.Entry, i int) Entry {
		return Entry{Position: offset + i + 1, Name: e.Name, Status: string(e.Status)}
	})
}

// Roster is the current roster state
type Roster struct {
	State        string     `json:"state"`
	Capacity     int        `json:"capacity"`
	Main         []Entry    `json:"main"`
	Reserve      []Entry    `json:"reserve"`
	Connected    int        `json:"connected"`
	Disconnected int        `json:"disconnected"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClosesAt     *time.Time `json:"closes_at,omitempty"`
	Finalizing   bool       `json:"finalizing,omitempty"`
}

// RosterFromView converts a controller view
func RosterFromView(v roster.View) Roster {
	r := Roster{
		State:        string(v.State),
		Capacity:     v.Capacity,
		Main:         entriesFromModel(v.Main, 0),
		Reserve:      entriesFromModel(v.Reserve, len(v.Main)),
		Connected:    v.Connected,
		Disconnected: v.Disconnected,
		Finalizing:   v.Finalizing,
	}
	if !v.OpenedAt.IsZero() {
		r.OpenedAt = lo.ToPtr(v.OpenedAt)
	}
	if !v.ClosesAt.IsZero() {
		r.ClosesAt = lo.ToPtr(v.ClosesAt)
	}
	return r
}

// Health reports liveness and the roster state
type Health struct {
	Status  string `json:"status"`
	Roster  string `json:"roster"`
	Entries int    `json:"entries"`
}

// Accepted acknowledges a command that runs in the background
type Accepted struct {
	Status  string `json:"status"`
	Command string `json:"command"`
}

// AddResult is the outcome of an automatic add
type AddResult struct {
	Name  string `json:"name"`
	Added bool   `json:"added"`
}

// InputResult reports how many collectors received a message
type InputResult struct {
	Delivered int `json:"delivered"`
}

// Presence lists who is present right now
type Presence struct {
	Present []string `json:"present"`
}

// Session is one closed roster
type Session struct {
	ID                string    `json:"id"`
	Seq               int64     `json:"seq"`
	ClosedAt          time.Time `json:"closed_at"`
	Capacity          int       `json:"capacity"`
	Main              []Entry   `json:"main"`
	Reserve           []Entry   `json:"reserve"`
	MainDisplayRef    string    `json:"main_display_ref,omitempty"`
	ReserveDisplayRef string    `json:"reserve_display_ref,omitempty"`
}

// SessionFromRecord converts a SessionRecord
func SessionFromRecord(rec *model.SessionRecord) Session {
	main, reserve := rec.Split()
	return Session{
		ID:                string(rec.ID),
		Seq:               rec.Seq,
		ClosedAt:          rec.ClosedAt,
		Capacity:          rec.Capacity,
		Main:              entriesFromModel(main, 0),
		Reserve:           entriesFromModel(reserve, len(main)),
		MainDisplayRef:    string(rec.MainDisplayRef),
		ReserveDisplayRef: string(rec.ReserveDisplayRef),
	}
}

// History lists closed rosters, oldest first
type History struct {
	Sessions []Session `json:"sessions"`
}

// Published reports how many messages a publish produced
type Published struct {
	Published int `json:"published"`
}

// Stats is the attendance table
type Stats struct {
	TotalSessions int64                `json:"total_sessions"`
	Players       []*model.PlayerStats `json:"players"`
}

// Board lists the messages shown on a display channel
type Board struct {
	Channel  string               `json:"channel"`
	Messages []model.BoardMessage `json:"messages"`
}

// Participants lists the directory
type Participants struct {
	Participants []model.Participant `json:"participants"`
}
