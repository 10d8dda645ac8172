package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mcoot/rollcall/internal/model"
)

// ErrFakeMessageNotFound is returned by FakeTarget for unknown references
var ErrFakeMessageNotFound = errors.New("fake target: message not found")

// FakeTarget is an in-memory display target that records every call
type FakeTarget struct {
	mu       sync.Mutex
	nextID   int
	order    []model.MessageRef
	messages map[model.MessageRef]fakeMessage
	sends    int
	edits    int
	deletes  int

	// SendErr, EditErr and DeleteErr, when set, are returned by the matching call
	SendErr   error
	EditErr   error
	DeleteErr error
}

type fakeMessage struct {
	channel model.ChannelID
	msg     model.Message
}

// NewFakeTarget creates an empty FakeTarget
func NewFakeTarget() *FakeTarget {
	return &FakeTarget{messages: make(map[model.MessageRef]fakeMessage)}
}

func (t *FakeTarget) Send(_ context.Context, channel model.ChannelID, msg model.Message) (model.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendErr != nil {
		return "", t.SendErr
	}
	t.nextID++
	t.sends++
	ref := model.MessageRef(fmt.Sprintf("msg_%d", t.nextID))
	t.messages[ref] = fakeMessage{channel: channel, msg: msg}
	t.order = append(t.order, ref)
	return ref, nil
}

func (t *FakeTarget) Edit(_ context.Context, ref model.MessageRef, msg model.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.EditErr != nil {
		return t.EditErr
	}
	m, ok := t.messages[ref]
	if !ok {
		return ErrFakeMessageNotFound
	}
	t.edits++
	m.msg = msg
	t.messages[ref] = m
	return nil
}

func (t *FakeTarget) Delete(_ context.Context, ref model.MessageRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.DeleteErr != nil {
		return t.DeleteErr
	}
	if _, ok := t.messages[ref]; !ok {
		return ErrFakeMessageNotFound
	}
	t.deletes++
	delete(t.messages, ref)
	return nil
}

// Get returns the current content of ref
func (t *FakeTarget) Get(ref model.MessageRef) (model.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.messages[ref]
	return m.msg, ok
}

// Messages returns the live messages on channel, oldest first
func (t *FakeTarget) Messages(channel model.ChannelID) []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Message
	for _, ref := range t.order {
		if m, ok := t.messages[ref]; ok && m.channel == channel {
			out = append(out, m.msg)
		}
	}
	return out
}

// Texts returns the live messages on channel flattened to one string each
func (t *FakeTarget) Texts(channel model.ChannelID) []string {
	msgs := t.Messages(channel)
	out := make([]string, len(msgs))
	for i, m := range msgs {
		parts := append([]string{m.Title}, m.Lines...)
		parts = append(parts, m.Footer)
		out[i] = strings.Join(parts, "\n")
	}
	return out
}

// HasText reports whether any live message on channel contains substr
func (t *FakeTarget) HasText(channel model.ChannelID, substr string) bool {
	for _, text := range t.Texts(channel) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Counts returns how many sends, edits and deletes succeeded
func (t *FakeTarget) Counts() (sends, edits, deletes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sends, t.edits, t.deletes
}

// SetErrors sets the injected errors under the lock
func (t *FakeTarget) SetErrors(send, edit, del error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SendErr, t.EditErr, t.DeleteErr = send, edit, del
}
