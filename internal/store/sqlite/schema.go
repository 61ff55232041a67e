package sqlite

import (
	"context"
	"database/sql"
)

// EnsureSchema creates the journal tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journal_entries (
            entry_id            TEXT PRIMARY KEY,
            user_id             TEXT NOT NULL,
            text                TEXT NOT NULL,
            title               TEXT,
            category            TEXT NOT NULL,
            created_at          TIMESTAMP NOT NULL,
            effective_date      TIMESTAMP NOT NULL,
            embedding           BLOB,
            analysis_status     TEXT NOT NULL,
            entry_type          TEXT NOT NULL,
            tags                TEXT NOT NULL DEFAULT '[]',
            mood_score          REAL,
            analysis            TEXT,
            insight             TEXT,
            extracted_tasks     TEXT,
            continues_situation TEXT,
            goal_update         TEXT,
            context_version     INTEGER NOT NULL DEFAULT 0,
            safety_flagged      BOOLEAN NOT NULL DEFAULT 0,
            warning_indicators  BOOLEAN NOT NULL DEFAULT 0,
            temporal_context    TEXT,
            future_mentions     TEXT,
            updated_at          TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS journal_entries_user_created_idx ON journal_entries(user_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
