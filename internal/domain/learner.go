// Package domain contains core domain types for the tutor application.
package domain

import (
	"time"
)

// Learner represents an anonymous student identified by a device cookie.
type Learner struct {
	LearnerID   string    `json:"learner_id"`
	DisplayName string    `json:"display_name"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Conversation identifies one conversation thread of a learner.
// Every orchestration call receives it explicitly; nothing is kept in process.
type Conversation struct {
	LearnerID string
	SessionID string
}

// Key returns the identifier stored alongside each message of the conversation.
func (c Conversation) Key() string {
	return c.LearnerID + ":" + c.SessionID
}
