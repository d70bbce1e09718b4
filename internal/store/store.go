// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/tutor-labs/internal/domain"
)

// ErrScoreOutOfRange is returned when a proficiency score outside
// [domain.MinScore, domain.MaxScore] reaches the store.
var ErrScoreOutOfRange = errors.New("proficiency score out of range")

// MessageStore is the append-only conversation log.
type MessageStore interface {
	// AppendMessage persists a message and returns it with its assigned ID.
	AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error)

	// RecentMessages returns at most limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)

	// DeleteMessagesBefore removes messages created before cutoff.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProficiencyStore holds the latest score per (topic, sub_topic).
type ProficiencyStore interface {
	// ListProficiency returns every stored entry for a learner.
	ListProficiency(ctx context.Context, learnerID string) ([]domain.ProficiencyEntry, error)

	// UpsertProficiency inserts or overwrites the score and last_updated of an entry.
	UpsertProficiency(ctx context.Context, learnerID, topic, subTopic string, score int) error
}

// LearnerStore persists anonymous learners.
type LearnerStore interface {
	// GetLearner retrieves a learner, or nil if unknown.
	GetLearner(ctx context.Context, learnerID string) (*domain.Learner, error)

	// UpsertLearner creates or updates a learner record.
	UpsertLearner(ctx context.Context, learner *domain.Learner) error
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	MessageStore
	ProficiencyStore
	LearnerStore

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
