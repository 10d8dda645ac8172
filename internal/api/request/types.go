package request

// LoginRequest is the request body for coordinator login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AddEntriesRequest is the request body for adding to the open roster
type AddEntriesRequest struct {
	Mode string `json:"mode"`
	Name string `json:"name,omitempty"`
}

// SetCapacityRequest is the request body for changing the roster capacity
type SetCapacityRequest struct {
	Capacity int `json:"capacity"`
}

// InputRequest carries one coordinator message
type InputRequest struct {
	Text string `json:"text"`
}

// PresenceRequest reports a participant joining, moving or leaving
type PresenceRequest struct {
	Name      string `json:"name"`
	ChannelID string `json:"channel_id,omitempty"`
	Present   bool   `json:"present"`
}

// UpsertParticipantRequest is the request body for adding or updating a participant
type UpsertParticipantRequest struct {
	Username    string   `json:"username,omitempty"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles,omitempty"`
}
