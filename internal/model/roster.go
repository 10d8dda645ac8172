package model

import "time"

// MaxCapacity is the largest number of main slots a roster may have
const MaxCapacity = 50

// Status is the connectivity of a roster entry
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// StatusFor maps a presence flag to a Status
func StatusFor(present bool) Status {
	if present {
		return StatusConnected
	}
	return StatusDisconnected
}

// RosterState is the lifecycle state of the roster
type RosterState string

const (
	RosterStateClosed RosterState = "closed"
	RosterStateOpen   RosterState = "open"
)

// AddMode selects how entries are added to an open roster
type AddMode string

const (
	// AddModeManual collects names interactively from the coordinator
	AddModeManual AddMode = "manual"
	// AddModeAutomatic adds one named participant as connected
	AddModeAutomatic AddMode = "automatic"
)

// Valid reports whether m is a known mode
func (m AddMode) Valid() bool {
	return m == AddModeManual || m == AddModeAutomatic
}

// Entry is a single participant on the roster
type Entry struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// RosterSnapshot is an immutable copy of the roster at a point in time
type RosterSnapshot struct {
	Epoch    uint64
	State    RosterState
	Entries  []Entry
	Capacity int
	OpenedAt time.Time
	ClosesAt time.Time
}

// Split returns the main and reserve entries of the snapshot
func (s RosterSnapshot) Split() (main, reserve []Entry) {
	return splitEntries(s.Entries, s.Capacity)
}

// Counts returns the number of connected and disconnected entries
func (s RosterSnapshot) Counts() (connected, disconnected int) {
	for _, e := range s.Entries {
		if e.Status == StatusConnected {
			connected++
		} else {
			disconnected++
		}
	}
	return connected, disconnected
}

// Roster holds the entries of the current sign-up session.
// It is not safe for concurrent use; the owner serializes access.
type Roster struct {
	state    RosterState
	epoch    uint64
	entries  []Entry
	index    map[string]int
	capacity int
	openedAt time.Time
	closesAt time.Time
}

// NewRoster creates an empty, closed roster
func NewRoster() *Roster {
	return &Roster{
		state: RosterStateClosed,
		index: make(map[string]int),
	}
}

// Open resets the roster and transitions it to the open state
func (r *Roster) Open(capacity int, openedAt, closesAt time.Time) error {
	if r.state == RosterStateOpen {
		return ErrAlreadyOpen
	}
	if capacity < 1 || capacity > MaxCapacity {
		return ErrInvalidCapacity
	}

	r.reset()
	r.state = RosterStateOpen
	r.epoch++
	r.capacity = capacity
	r.openedAt = openedAt
	r.closesAt = closesAt
	return nil
}

// IsOpen reports whether the roster is accepting entries
func (r *Roster) IsOpen() bool {
	return r.state == RosterStateOpen
}

// Epoch identifies the current open session; it increments on every Open
func (r *Roster) Epoch() uint64 {
	return r.epoch
}

// Has reports whether name is on the roster
func (r *Roster) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// StatusOf returns the status of name, if it is on the roster
func (r *Roster) StatusOf(name string) (Status, bool) {
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.entries[i].Status, true
}

// Len returns the number of entries
func (r *Roster) Len() int {
	return len(r.entries)
}

// TryAdd appends a single entry
func (r *Roster) TryAdd(name string, status Status) error {
	if r.state != RosterStateOpen {
		return ErrNotOpen
	}
	if r.Has(name) {
		return &DuplicateError{Name: name}
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Status: status})
	return nil
}

// TryAddBatch appends all names or none of them. A name that is already
// present, or repeated within the batch, rejects the whole batch.
func (r *Roster) TryAddBatch(names []string, statusFor func(name string) Status) error {
	if r.state != RosterStateOpen {
		return ErrNotOpen
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if r.Has(name) {
			return &DuplicateError{Name: name}
		}
		if _, ok := seen[name]; ok {
			return &DuplicateError{Name: name}
		}
		seen[name] = struct{}{}
	}

	for _, name := range names {
		r.index[name] = len(r.entries)
		r.entries = append(r.entries, Entry{Name: name, Status: statusFor(name)})
	}
	return nil
}

// SetStatus overwrites the status of name. It reports whether anything changed.
func (r *Roster) SetStatus(name string, status Status) bool {
	i, ok := r.index[name]
	if !ok || r.entries[i].Status == status {
		return false
	}
	r.entries[i].Status = status
	return true
}

// Names returns the entry names in insertion order
func (r *Roster) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Split returns copies of the main and reserve entries
func (r *Roster) Split() (main, reserve []Entry) {
	return splitEntries(r.entries, r.capacity)
}

// Snapshot returns an immutable copy of the roster
func (r *Roster) Snapshot() RosterSnapshot {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return RosterSnapshot{
		Epoch:    r.epoch,
		State:    r.state,
		Entries:  entries,
		Capacity: r.capacity,
		OpenedAt: r.openedAt,
		ClosesAt: r.closesAt,
	}
}

// SetClosesAt records the pending auto-close deadline
func (r *Roster) SetClosesAt(t time.Time) {
	r.closesAt = t
}

// Clear empties the roster and transitions it to closed
func (r *Roster) Clear() {
	r.reset()
	r.state = RosterStateClosed
}

func (r *Roster) reset() {
	r.entries = nil
	r.index = make(map[string]int)
	r.capacity = 0
	r.openedAt = time.Time{}
	r.closesAt = time.Time{}
}

func splitEntries(entries []Entry, capacity int) (main, reserve []Entry) {
	k := min(capacity, len(entries))
	if k < 0 {
		k = 0
	}
	main = make([]Entry, k)
	copy(main, entries[:k])
	reserve = make([]Entry, len(entries)-k)
	copy(reserve, entries[k:])
	return main, reserve
}
