package postgres

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS journal_entries (
        entry_id            TEXT PRIMARY KEY,
        user_id             TEXT NOT NULL,
        text                TEXT NOT NULL,
        title               TEXT,
        category            TEXT NOT NULL,
        created_at          TIMESTAMPTZ NOT NULL,
        effective_date      TIMESTAMPTZ NOT NULL,
        embedding           BYTEA,
        analysis_status     TEXT NOT NULL,
        entry_type          TEXT NOT NULL,
        tags                JSONB NOT NULL DEFAULT '[]'::jsonb,
        mood_score          DOUBLE PRECISION,
        analysis            JSONB,
        insight             JSONB,
        extracted_tasks     JSONB,
        continues_situation TEXT,
        goal_update         JSONB,
        context_version     INTEGER NOT NULL DEFAULT 0,
        safety_flagged      BOOLEAN NOT NULL DEFAULT FALSE,
        warning_indicators  BOOLEAN NOT NULL DEFAULT FALSE,
        temporal_context    JSONB,
        future_mentions     JSONB,
        updated_at          TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS journal_entries_user_created_idx ON journal_entries (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS journal_entries_pending_idx ON journal_entries (user_id) WHERE analysis_status = 'pending'`,
}

// EnsureSchema creates the journal tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
