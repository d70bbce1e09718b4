package domain

import (
	"strings"
	"time"
)

// Role is the author of a message.
type Role string

const (
	// RoleUser marks a message written by the student.
	RoleUser Role = "user"
	// RoleAI marks a reply produced by the model.
	RoleAI Role = "ai"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAI
}

// Upper returns the transcript label for the role, e.g. "USER".
func (r Role) Upper() string {
	return strings.ToUpper(string(r))
}

// Message is an immutable entry of the conversation log.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"-"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
