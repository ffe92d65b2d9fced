package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"tzevents/pkg/resources"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		username varchar(255) NOT NULL UNIQUE,
		email varchar(255) NOT NULL UNIQUE,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id uuid PRIMARY KEY REFERENCES users (id) ON DELETE CASCADE,
		default_timezone varchar(100) NOT NULL DEFAULT 'UTC',
		date_format text NOT NULL DEFAULT 'MM/DD/YYYY',
		time_format text NOT NULL DEFAULT 'hh:mm A',
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id uuid PRIMARY KEY,
		shareable_id text NOT NULL,
		title varchar(255) NOT NULL,
		description text,
		start_time timestamptz NOT NULL,
		end_time timestamptz,
		timezone varchar(100) NOT NULL DEFAULT 'UTC',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		user_id uuid REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT events_end_after_start CHECK (end_time IS NULL OR end_time >= start_time)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS events_shareable_id_key ON events (shareable_id)`,
	`CREATE INDEX IF NOT EXISTS events_start_time_idx ON events (start_time)`,
	`CREATE INDEX IF NOT EXISTS events_user_id_idx ON events (user_id)`,
}

// Migrate creates the tables and indexes the repository relies on. It can
// run any number of times.
func Migrate(ctx context.Context, db resources.DBInstance) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}

	for i, statement := range schema {
		if _, err := tx.Exec(ctx, statement); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Ctx(ctx).Info().Str("stage", "startup").Int("statements", len(schema)).Msg("schema migrated")

	return nil
}
