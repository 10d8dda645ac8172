package model

// ParticipantID uniquely identifies a participant across sessions
type ParticipantID string

// RoleID identifies a role a participant can hold
type RoleID string

// ChannelID identifies a presence channel or a display channel
type ChannelID string

// Participant is a member of the community known to the directory
type Participant struct {
	ID          ParticipantID `json:"id" mapstructure:"id"`
	Username    string        `json:"username" mapstructure:"username"`
	DisplayName string        `json:"display_name" mapstructure:"display_name"`
	Roles       []RoleID      `json:"roles" mapstructure:"roles"`
}

// HasRole reports whether the participant holds role
func (p *Participant) HasRole(role RoleID) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Coordinator is an account allowed to drive the roster lifecycle
type Coordinator struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt hash
}
