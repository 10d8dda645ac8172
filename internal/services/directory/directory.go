package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/rollcall/internal/model"
)

// Directory resolves roster names to known participants. Names are
// matched against the display name first and then the username.
type Directory struct {
	eligibleRole model.RoleID

	mu           sync.RWMutex
	participants map[model.ParticipantID]*model.Participant
}

// New creates a directory seeded with participants. eligibleRole is the
// role required for attendance to be counted; empty means everyone counts.
func New(eligibleRole model.RoleID, participants []model.Participant) *Directory {
	d := &Directory{
		eligibleRole: eligibleRole,
		participants: make(map[model.ParticipantID]*model.Participant, len(participants)),
	}
	for i := range participants {
		p := participants[i]
		d.participants[p.ID] = &p
	}
	return d
}

// Resolve finds the participant shown on the roster as name
func (d *Directory) Resolve(_ context.Context, name string) (*model.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var byUsername *model.Participant
	for _, p := range d.participants {
		if p.DisplayName == name {
			cp := *p
			return &cp, nil
		}
		if byUsername == nil && p.Username == name {
			byUsername = p
		}
	}
	if byUsername != nil {
		cp := *byUsername
		return &cp, nil
	}
	return nil, model.ErrParticipantNotFound
}

// IsEligible reports whether the participant currently holds the eligible role
func (d *Directory) IsEligible(_ context.Context, id model.ParticipantID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.participants[id]
	if !ok {
		return false, model.ErrParticipantNotFound
	}
	if d.eligibleRole == "" {
		return true, nil
	}
	return p.HasRole(d.eligibleRole), nil
}

// Upsert adds or replaces a participant
func (d *Directory) Upsert(p model.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.participants[p.ID] = &p
}

// List returns every participant sorted by id
func (d *Directory) List() []model.Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Participant, 0, len(d.participants))
	for _, p := range d.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
