package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/tutor-labs/internal/domain"
	"github.com/ashureev/tutor-labs/internal/shared"
)

// dialect captures the few differences between the supported databases.
type dialect struct {
	name   string
	schema string
	// numbered placeholders ($1, $2, ...) instead of '?'.
	numbered bool
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements Repository on database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	retry   shared.RetryPolicy
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	return &sqlStore{
		db:      db,
		dialect: d,
		retry:   shared.DefaultRetryPolicy,
		now:     time.Now,
	}
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// AppendMessage persists a message and returns it with its assigned ID.
func (s *sqlStore) AppendMessage(ctx context.Context, conversationID string, role domain.Role, content string) (*domain.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("append message: invalid role %q", role)
	}

	query := s.dialect.rebind(`
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	createdAt := s.now()
	msg := &domain.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.UnixMilli(createdAt.UnixMilli()),
	}

	err := shared.RetryOnConflict(ctx, s.retry, "append_message", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, query,
			conversationID, string(role), content, createdAt.UnixMilli(),
		).Scan(&msg.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns at most limit of the newest messages, oldest first.
func (s *sqlStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := s.dialect.rebind(`
		SELECT id, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY id DESC LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent messages rows", "error", closeErr)
		}
	}()

	var messages []domain.Message
	for rows.Next() {
		var (
			msg       domain.Message
			role      string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.ConversationID = conversationID
		msg.Role = domain.Role(role)
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

// DeleteMessagesBefore removes messages created before cutoff.
func (s *sqlStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.dialect.rebind(`DELETE FROM messages WHERE created_at < ?`)

	var deleted int64
	err := shared.RetryOnConflict(ctx, s.retry, "delete_messages", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete old messages: %w", err)
	}
	return deleted, nil
}

// ListProficiency returns every stored entry for a learner.
func (s *sqlStore) ListProficiency(ctx context.Context, learnerID string) ([]domain.ProficiencyEntry, error) {
	query := s.dialect.rebind(`
		SELECT topic, sub_topic, score, last_updated
		FROM proficiency WHERE learner_id = ?
		ORDER BY topic, sub_topic`)

	rows, err := s.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, fmt.Errorf("query proficiency: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close proficiency rows", "error", closeErr)
		}
	}()

	var entries []domain.ProficiencyEntry
	for rows.Next() {
		entry := domain.ProficiencyEntry{LearnerID: learnerID}
		var lastUpdated int64
		if err := rows.Scan(&entry.Topic, &entry.SubTopic, &entry.Score, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan proficiency row: %w", err)
		}
		entry.LastUpdated = time.UnixMilli(lastUpdated)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proficiency: %w", err)
	}
	return entries, nil
}

// UpsertProficiency inserts or overwrites the score and last_updated of an entry.
func (s *sqlStore) UpsertProficiency(ctx context.Context, learnerID, topic, subTopic string, score int) error {
	if score < domain.MinScore || score > domain.MaxScore {
		return fmt.Errorf("upsert proficiency %s/%s: %w: %d", topic, subTopic, ErrScoreOutOfRange, score)
	}

	query := s.dialect.rebind(`
		INSERT INTO proficiency (learner_id, topic, sub_topic, score, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, topic, sub_topic) DO UPDATE SET
			score = excluded.score,
			last_updated = excluded.last_updated`)

	now := s.now().UnixMilli()
	err := shared.RetryOnConflict(ctx, s.retry, "upsert_proficiency", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, learnerID, topic, subTopic, score, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert proficiency: %w", err)
	}
	return nil
}

// GetLearner retrieves a learner, or nil if unknown.
func (s *sqlStore) GetLearner(ctx context.Context, learnerID string) (*domain.Learner, error) {
	query := s.dialect.rebind(`
		SELECT learner_id, display_name, last_seen_at, created_at
		FROM learners WHERE learner_id = ?`)

	var (
		learner             domain.Learner
		lastSeen, createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, learnerID).Scan(
		&learner.LearnerID, &learner.DisplayName, &lastSeen, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan learner row: %w", err)
	}

	learner.LastSeenAt = time.UnixMilli(lastSeen)
	learner.CreatedAt = time.UnixMilli(createdAt)
	return &learner, nil
}

// UpsertLearner creates or updates a learner record.
func (s *sqlStore) UpsertLearner(ctx context.Context, learner *domain.Learner) error {
	query := s.dialect.rebind(`
		INSERT INTO learners (learner_id, display_name, last_seen_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(learner_id) DO UPDATE SET
			display_name = excluded.display_name,
			last_seen_at = excluded.last_seen_at`)

	err := shared.RetryOnConflict(ctx, s.retry, "upsert_learner", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			learner.LearnerID, learner.DisplayName,
			learner.LastSeenAt.UnixMilli(), learner.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert learner: %w", err)
	}
	return nil
}
