package testutil

import (
	"context"
	"sync"
)

// FakePresence is a settable presence source
type FakePresence struct {
	mu      sync.Mutex
	present []string
	err     error
	calls   int
}

// NewFakePresence creates a FakePresence reporting names as present
func NewFakePresence(names ...string) *FakePresence {
	return &FakePresence{present: names}
}

// CurrentlyPresent returns the configured names or error
func (p *FakePresence) CurrentlyPresent(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make([]string, len(p.present))
	copy(out, p.present)
	return out, nil
}

// Set replaces the set of present names
func (p *FakePresence) Set(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present = names
}

// SetError makes CurrentlyPresent fail with err (nil to clear)
func (p *FakePresence) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns how many times CurrentlyPresent was called
func (p *FakePresence) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
