// internal/infra/database/postgres_trigger.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/lib/pq"
)

var channelName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// NOTIFY payloads are capped at 8000 bytes, so the description is cut short.
const changeTriggerTemplate = `
CREATE OR REPLACE FUNCTION notify_task_reminders_changes() RETURNS trigger AS $$
DECLARE
    row_data  task_reminders;
    task_data json;
BEGIN
    IF TG_OP = 'DELETE' THEN
        row_data := OLD;
    ELSE
        row_data := NEW;
    END IF;

    SELECT json_build_object('title', t.title, 'description', left(t.description, 4000))
      INTO task_data
      FROM tasks t
     WHERE t.id = row_data.task_id;

    PERFORM pg_notify(%s, json_build_object(
        'operation',   TG_OP,
        'changed_row', row_to_json(row_data),
        'task',        task_data
    )::text);

    RETURN row_data;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS task_reminders_changes_notify ON task_reminders;

CREATE TRIGGER task_reminders_changes_notify
    AFTER INSERT OR UPDATE OR DELETE ON task_reminders
    FOR EACH ROW EXECUTE FUNCTION notify_task_reminders_changes();
`

func changeTriggerSQL(channel string) (string, error) {
	if !channelName.MatchString(channel) {
		return "", fmt.Errorf("invalid notification channel name %q", channel)
	}
	return fmt.Sprintf(changeTriggerTemplate, pq.QuoteLiteral(channel)), nil
}

// InstallChangeTrigger installs the trigger on the upstream task_reminders table
// that publishes every row change on channel. Running it again replaces it.
func InstallChangeTrigger(ctx context.Context, db *sql.DB, channel string) error {
	stmt, err := changeTriggerSQL(channel)
	if err != nil {
		return err
	}

	txn, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for trigger install: %w", err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("error installing change trigger: %w", err)
	}
	return txn.Commit()
}
