// internal/infra/database/sqlite_reminder_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reminder_relay/internal/domain/reminder"
)

var (
	// ErrReminderNotFound is returned when no pending reminder has the requested id.
	ErrReminderNotFound = errors.New("pending reminder not found")
	// ErrReminderChanged is returned by Archive when the pending row no longer
	// matches the snapshot it was given.
	ErrReminderChanged = errors.New("pending reminder changed since it was read")
)

// timeLayout is fixed width and always UTC, see schema.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing stored timestamp %q: %w", v, err)
	}
	return t, nil
}

var _ reminder.Repository = (*SQLiteReminderRepository)(nil)

type SQLiteReminderRepository struct {
	db *sql.DB
}

func NewSQLiteReminderRepository(db *sql.DB) *SQLiteReminderRepository {
	return &SQLiteReminderRepository{db: db}
}

// --- Listener side ---

func (r *SQLiteReminderRepository) Insert(ctx context.Context, rem *reminder.PendingReminder) (bool, error) {
	query := `INSERT INTO task_reminders (id, task_id, task_name, description, reminder, created, relative_period, relative_to)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)
               ON CONFLICT(id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		rem.ID, rem.TaskID, rem.TaskName, rem.Description,
		formatTime(rem.ReminderTime), formatTime(rem.Created),
		nullInt64(rem.RelativePeriod), nullString(rem.RelativeTo),
	)
	if err != nil {
		return false, fmt.Errorf("error inserting pending reminder %d: %w", rem.ID, err)
	}
	return affected(res)
}

func (r *SQLiteReminderRepository) Update(ctx context.Context, rem *reminder.PendingReminder) (bool, error) {
	query := `UPDATE task_reminders
               SET task_id = ?, task_name = ?, description = ?, reminder = ?, created = ?, relative_period = ?, relative_to = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		rem.TaskID, rem.TaskName, rem.Description,
		formatTime(rem.ReminderTime), formatTime(rem.Created),
		nullInt64(rem.RelativePeriod), nullString(rem.RelativeTo),
		rem.ID,
	)
	if err != nil {
		return false, fmt.Errorf("error updating pending reminder %d: %w", rem.ID, err)
	}
	return affected(res)
}

func (r *SQLiteReminderRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_reminders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("error deleting pending reminder %d: %w", id, err)
	}
	return affected(res)
}

func (r *SQLiteReminderRepository) Get(ctx context.Context, id int64) (*reminder.PendingReminder, error) {
	query := `SELECT id, task_id, task_name, description, reminder, created, relative_period, relative_to
               FROM task_reminders WHERE id = ?`
	rem, err := scanPending(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("error getting pending reminder %d: %w", id, err)
	}
	return rem, nil
}

// --- Dispatcher side ---

func (r *SQLiteReminderRepository) ListDue(ctx context.Context, now time.Time) ([]*reminder.PendingReminder, error) {
	query := `SELECT id, task_id, task_name, description, reminder, created, relative_period, relative_to
               FROM task_reminders
               WHERE reminder <= ?
               ORDER BY reminder ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("error querying due reminders: %w", err)
	}
	defer rows.Close()

	due := make([]*reminder.PendingReminder, 0)
	for rows.Next() {
		rem, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning due reminder row: %w", err)
		}
		due = append(due, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due reminder rows: %w", err)
	}
	return due, nil
}

// Archive moves rem to past_reminders. The pending row is only removed while
// it still matches rem. If it is gone ErrReminderNotFound is returned, if it
// was rewritten in the meantime ErrReminderChanged is returned and the row
// stays pending. Nothing is archived in either case.
func (r *SQLiteReminderRepository) Archive(ctx context.Context, rem *reminder.PendingReminder, movedAt time.Time) (*reminder.ArchivedReminder, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for archive: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	res, err := txn.ExecContext(ctx, `DELETE FROM task_reminders
               WHERE id = ? AND reminder = ? AND task_name = ? AND description IS ?`,
		rem.ID, formatTime(rem.ReminderTime), rem.TaskName, rem.Description)
	if err != nil {
		return nil, fmt.Errorf("error deleting pending reminder %d for archive: %w", rem.ID, err)
	}
	if deleted, err := affected(res); err != nil {
		return nil, err
	} else if !deleted {
		var exists int
		err := txn.QueryRowContext(ctx, `SELECT 1 FROM task_reminders WHERE id = ?`, rem.ID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrReminderNotFound
		case err != nil:
			return nil, fmt.Errorf("error checking pending reminder %d for archive: %w", rem.ID, err)
		}
		return nil, ErrReminderChanged
	}

	archived := &reminder.ArchivedReminder{
		TaskName:     rem.TaskName,
		ReminderTime: rem.ReminderTime.UTC().Truncate(time.Microsecond),
		Description:  rem.Description,
		MovedAt:      movedAt.UTC().Truncate(time.Microsecond),
	}
	res, err = txn.ExecContext(ctx, `INSERT INTO past_reminders (task_name, reminder, description, moved_at)
               VALUES (?, ?, ?, ?)`,
		archived.TaskName, formatTime(archived.ReminderTime), archived.Description, formatTime(archived.MovedAt))
	if err != nil {
		return nil, fmt.Errorf("error inserting archived reminder for %d: %w", rem.ID, err)
	}
	if archived.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("error reading archived reminder id: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit archive of reminder %d: %w", rem.ID, err)
	}
	return archived, nil
}

// ListArchived returns the newest archive entries first. A non-positive limit returns all of them.
func (r *SQLiteReminderRepository) ListArchived(ctx context.Context, limit int) ([]*reminder.ArchivedReminder, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, task_name, reminder, description, moved_at
               FROM past_reminders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying archived reminders: %w", err)
	}
	defer rows.Close()

	archived := make([]*reminder.ArchivedReminder, 0)
	for rows.Next() {
		var (
			a                   reminder.ArchivedReminder
			reminderAt, movedAt string
			description         sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TaskName, &reminderAt, &description, &movedAt); err != nil {
			return nil, fmt.Errorf("error scanning archived reminder row: %w", err)
		}
		if a.ReminderTime, err = parseTime(reminderAt); err != nil {
			return nil, err
		}
		if a.MovedAt, err = parseTime(movedAt); err != nil {
			return nil, err
		}
		a.Description = description.String
		archived = append(archived, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived reminder rows: %w", err)
	}
	return archived, nil
}

// Helper shared by single-row and multi-row reads
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (*reminder.PendingReminder, error) {
	var (
		rem                 reminder.PendingReminder
		description         sql.NullString
		reminderAt, created string
		relativePeriod      sql.NullInt64
		relativeTo          sql.NullString
	)
	if err := row.Scan(&rem.ID, &rem.TaskID, &rem.TaskName, &description, &reminderAt, &created, &relativePeriod, &relativeTo); err != nil {
		return nil, err
	}

	var err error
	if rem.ReminderTime, err = parseTime(reminderAt); err != nil {
		return nil, err
	}
	if rem.Created, err = parseTime(created); err != nil {
		return nil, err
	}
	rem.Description = description.String
	if relativePeriod.Valid {
		v := relativePeriod.Int64
		rem.RelativePeriod = &v
	}
	if relativeTo.Valid {
		v := relativeTo.String
		rem.RelativeTo = &v
	}
	return &rem, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n > 0, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
