package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as fixed-width UTC text so that string comparison
// in SQL matches chronological order.
const schema = `
CREATE TABLE IF NOT EXISTS task_reminders (
    id              INTEGER PRIMARY KEY,
    task_id         INTEGER NOT NULL,
    task_name       TEXT    NOT NULL,
    description     TEXT,
    reminder        TEXT    NOT NULL,
    created         TEXT    NOT NULL,
    relative_period INTEGER,
    relative_to     TEXT
);

CREATE INDEX IF NOT EXISTS idx_task_reminders_reminder
    ON task_reminders(reminder);

CREATE TABLE IF NOT EXISTS past_reminders (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    task_name   TEXT NOT NULL,
    reminder    TEXT NOT NULL,
    description TEXT,
    moved_at    TEXT NOT NULL
);
`

// InitSchema creates the local tables. Safe to run on every start.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return nil
}
