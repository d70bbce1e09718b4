package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'ai')),
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);

	CREATE TABLE IF NOT EXISTS proficiency (
		learner_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		sub_topic TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 5 CHECK (score BETWEEN 1 AND 10),
		last_updated BIGINT NOT NULL,
		PRIMARY KEY (learner_id, topic, sub_topic)
	);

	CREATE TABLE IF NOT EXISTS learners (
		learner_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		last_seen_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	);
	`

// NewPostgres creates a Postgres-backed repository using the pgx driver.
func NewPostgres(ctx context.Context, dsn string) (Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open database: empty postgres dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := newSQLStore(db, dialect{name: "postgres", schema: postgresSchema, numbered: true})
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

// Open selects the repository implementation for driver.
func Open(ctx context.Context, driver, dbPath, dsn string) (Repository, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dbPath)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
