package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// NeverPlayed is the LastPlayedDate of a participant who never connected
const NeverPlayed = "never"

// PlayedDateLayout is the layout of PlayerStats.LastPlayedDate
const PlayedDateLayout = "02-01-2006"

// SessionID uniquely identifies a closed session
type SessionID string

// MessageRef is an opaque handle to a message on a display target
type MessageRef string

// SessionRecord is the durable snapshot of a closed roster
type SessionRecord struct {
	ID                SessionID
	Seq               int64 // assigned by the store
	ClosedAt          time.Time
	Entries           []Entry
	Capacity          int
	MainDisplayRef    MessageRef
	ReserveDisplayRef MessageRef
}

// Split returns the main and reserve entries of the record
func (r *SessionRecord) Split() (main, reserve []Entry) {
	return splitEntries(r.Entries, r.Capacity)
}

// StoredSession is a SessionRecord as it is kept by storage backends.
// Entries are kept in their serialized form so that a malformed row can
// be reported and skipped without failing the whole read.
type StoredSession struct {
	ID                SessionID  `json:"id"`
	Seq               int64      `json:"seq"`
	ClosedAt          time.Time  `json:"closed_at"`
	Entries           string     `json:"entries"`
	Capacity          int        `json:"capacity"`
	MainDisplayRef    MessageRef `json:"main_display_ref,omitempty"`
	ReserveDisplayRef MessageRef `json:"reserve_display_ref,omitempty"`
}

// Encode converts a SessionRecord to its stored form
func (r *SessionRecord) Encode() (*StoredSession, error) {
	data, err := EncodeEntries(r.Entries)
	if err != nil {
		return nil, err
	}
	return &StoredSession{
		ID:                r.ID,
		Seq:               r.Seq,
		ClosedAt:          r.ClosedAt,
		Entries:           data,
		Capacity:          r.Capacity,
		MainDisplayRef:    r.MainDisplayRef,
		ReserveDisplayRef: r.ReserveDisplayRef,
	}, nil
}

// Decode converts a stored session back to a SessionRecord
func (s *StoredSession) Decode() (*SessionRecord, error) {
	entries, err := DecodeEntries(s.Entries)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", s.Seq, err)
	}
	return &SessionRecord{
		ID:                s.ID,
		Seq:               s.Seq,
		ClosedAt:          s.ClosedAt,
		Entries:           entries,
		Capacity:          s.Capacity,
		MainDisplayRef:    s.MainDisplayRef,
		ReserveDisplayRef: s.ReserveDisplayRef,
	}, nil
}

// EncodeEntries serializes entries as an ordered JSON array
func EncodeEntries(entries []Entry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeEntries parses serialized entries. It accepts the ordered array
// form written by EncodeEntries and the legacy object form
// {"name":"si"} written by older deployments.
func DecodeEntries(data string) ([]Entry, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty entries", ErrMalformedRecord)
	}

	if strings.HasPrefix(trimmed, "[") {
		var entries []Entry
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		for i, e := range entries {
			status, err := ParseStatus(string(e.Status))
			if err != nil {
				return nil, err
			}
			entries[i].Status = status
		}
		return entries, nil
	}

	return decodeLegacyEntries(trimmed)
}

// decodeLegacyEntries walks the JSON object token by token so that the
// original key order is kept.
func decodeLegacyEntries(data string) ([]Entry, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: expected object", ErrMalformedRecord)
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key", ErrMalformedRecord)
		}
		var raw string
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		status, err := ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Status: status})
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, fmt.Errorf("%w: unterminated object", ErrMalformedRecord)
	}
	return entries, nil
}

// ParseStatus accepts the canonical status values and the legacy tokens
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusConnected), "si", "sí", "yes":
		return StatusConnected, nil
	case string(StatusDisconnected), "no":
		return StatusDisconnected, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrMalformedRecord, s)
	}
}

// PlayerStats holds cumulative attendance for one participant
type PlayerStats struct {
	ParticipantID     ParticipantID `json:"participant_id"`
	DisplayName       string        `json:"display_name"`
	TotalSignups      int           `json:"total_signups"`
	TotalConnected    int           `json:"total_connected"`
	TotalDisconnected int           `json:"total_disconnected"`
	LastPlayedDate    string        `json:"last_played_date"`
	ConnectedPct      float64       `json:"connected_pct"`
	AbsencePct        float64       `json:"absence_pct"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NewPlayerStats creates zeroed stats for a participant
func NewPlayerStats(id ParticipantID, displayName string) *PlayerStats {
	return &PlayerStats{
		ParticipantID:  id,
		DisplayName:    displayName,
		LastPlayedDate: NeverPlayed,
	}
}

// Record adds one session's outcome to the totals
func (p *PlayerStats) Record(status Status, closedAt time.Time) {
	p.TotalSignups++
	if status == StatusConnected {
		p.TotalConnected++
		p.LastPlayedDate = closedAt.Format(PlayedDateLayout)
	} else {
		p.TotalDisconnected++
	}
	if p.LastPlayedDate == "" {
		p.LastPlayedDate = NeverPlayed
	}
}

// Recompute derives the percentages from the totals. ConnectedPct is the
// share of all sessions ever held that this participant signed up for.
func (p *PlayerStats) Recompute(totalSessions int64) {
	p.ConnectedPct = 0
	if totalSessions > 0 {
		p.ConnectedPct = round2(float64(p.TotalSignups) / float64(totalSessions) * 100)
	}
	p.AbsencePct = 0
	if p.TotalSignups > 0 {
		p.AbsencePct = round2(float64(p.TotalDisconnected) / float64(p.TotalSignups) * 100)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
