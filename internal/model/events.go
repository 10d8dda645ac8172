package model

import "time"

// EventType identifies the type of event published to display subscribers
type EventType string

const (
	// Display board events
	EventMessageCreated EventType = "message-created"
	EventMessageUpdated EventType = "message-updated"
	EventMessageDeleted EventType = "message-deleted"
)

// PresenceEvent reports that a participant joined, moved or left a presence channel
type PresenceEvent struct {
	Name      string    `json:"name"`
	ChannelID ChannelID `json:"channel_id,omitempty"` // empty when not present anywhere
	Present   bool      `json:"present"`
	At        time.Time `json:"at"`
}

// Message is a rendered display message
type Message struct {
	Title  string   `json:"title"`
	Lines  []string `json:"lines"`
	Footer string   `json:"footer,omitempty"`
}

// BoardMessage is a message currently shown on a display channel
type BoardMessage struct {
	Ref       MessageRef `json:"ref"`
	Channel   ChannelID  `json:"channel"`
	Message   Message    `json:"message"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BoardEvent is the payload of a display board event
type BoardEvent struct {
	Type    EventType    `json:"type"`
	Message BoardMessage `json:"message"`
}
