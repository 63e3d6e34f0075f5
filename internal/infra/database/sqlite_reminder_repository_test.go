package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"reminder_relay/internal/domain/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*SQLiteReminderRepository, *sql.DB) {
	t.Helper()

	db, err := NewSQLiteConnection(filepath.Join(t.TempDir(), "data", "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQLiteReminderRepository(db), db
}

func newPending(id int64, at time.Time) *reminder.PendingReminder {
	period := int64(-600)
	relativeTo := "due_date"
	return &reminder.PendingReminder{
		ID:             id,
		TaskID:         id * 10,
		TaskName:       "Task",
		Description:    "desc",
		ReminderTime:   at,
		Created:        at.Add(-24 * time.Hour),
		RelativePeriod: &period,
		RelativeTo:     &relativeTo,
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestNewSQLiteConnection_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.db")
	for i := 0; i < 3; i++ {
		db, err := NewSQLiteConnection(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, db.Close())
	}
}

func TestInsert_IsIdempotent(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	inserted, err := repo.Insert(ctx, newPending(1, at))
	require.NoError(t, err)
	assert.True(t, inserted)

	second := newPending(1, at.Add(time.Hour))
	second.TaskName = "Replayed"
	inserted, err = repo.Insert(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Equal(t, 1, countRows(t, db, "task_reminders"))
	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Task", got.TaskName)
	assert.True(t, got.ReminderTime.Equal(at))
}

func TestInsert_RoundTripsOptionalFields(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 8, 30, 15, 123456000, time.UTC)

	withFields := newPending(1, at)
	bare := newPending(2, at)
	bare.RelativePeriod = nil
	bare.RelativeTo = nil
	bare.Description = ""

	for _, r := range []*reminder.PendingReminder{withFields, bare} {
		_, err := repo.Insert(ctx, r)
		require.NoError(t, err)
	}

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, withFields.TaskID, got.TaskID)
	assert.True(t, got.ReminderTime.Equal(at))
	require.NotNil(t, got.RelativePeriod)
	assert.Equal(t, int64(-600), *got.RelativePeriod)
	require.NotNil(t, got.RelativeTo)
	assert.Equal(t, "due_date", *got.RelativeTo)

	got, err = repo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, got.RelativePeriod)
	assert.Nil(t, got.RelativeTo)
	assert.Equal(t, "", got.Description)
}

func TestUpdate(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	updated, err := repo.Update(ctx, newPending(1, at))
	require.NoError(t, err)
	assert.False(t, updated, "update of an unknown id is a no-op")
	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrReminderNotFound)

	_, err = repo.Insert(ctx, newPending(1, at))
	require.NoError(t, err)

	changed := newPending(1, at.Add(2*time.Hour))
	changed.TaskName = "Renamed"
	changed.RelativeTo = nil
	updated, err = repo.Update(ctx, changed)
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.TaskName)
	assert.True(t, got.ReminderTime.Equal(at.Add(2*time.Hour)))
	assert.Nil(t, got.RelativeTo)
}

func TestDelete(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, 42)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.Insert(ctx, newPending(42, time.Now()))
	require.NoError(t, err)
	deleted, err = repo.Delete(ctx, 42)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, countRows(t, db, "task_reminders"))
}

func TestListDue_InclusiveBoundary(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, newPending(1, now))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newPending(2, now.Add(time.Microsecond)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newPending(3, now.Add(-time.Hour)))
	require.NoError(t, err)

	due, err := repo.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(3), due[0].ID, "oldest first")
	assert.Equal(t, int64(1), due[1].ID, "exactly now is due")

	due, err = repo.ListDue(ctx, now.Add(time.Microsecond))
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestListDue_ComparesAcrossOffsets(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	berlin := time.FixedZone("CEST", 2*60*60)

	// 10:00+02:00 is 08:00 UTC and therefore due at 09:00 UTC.
	_, err := repo.Insert(ctx, newPending(1, time.Date(2024, 6, 1, 10, 0, 0, 0, berlin)))
	require.NoError(t, err)

	due, err := repo.ListDue(ctx, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestArchive_MovesRowAtomically(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	movedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	pending := newPending(1, at)
	_, err := repo.Insert(ctx, pending)
	require.NoError(t, err)

	archived, err := repo.Archive(ctx, pending, movedAt)
	require.NoError(t, err)
	assert.NotZero(t, archived.ID)

	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrReminderNotFound)

	all, err := repo.ListArchived(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Task", all[0].TaskName)
	assert.Equal(t, "desc", all[0].Description)
	assert.True(t, all[0].ReminderTime.Equal(at))
	assert.True(t, all[0].MovedAt.Equal(movedAt))

	_, err = repo.Archive(ctx, pending, movedAt)
	assert.ErrorIs(t, err, ErrReminderNotFound, "second archive finds nothing to move")
	assert.Equal(t, 1, countRows(t, db, "past_reminders"))
}

func TestArchive_LeavesRewrittenRowPending(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	snapshot := newPending(1, at)
	_, err := repo.Insert(ctx, snapshot)
	require.NoError(t, err)

	rescheduled := newPending(1, later)
	_, err = repo.Update(ctx, rescheduled)
	require.NoError(t, err)

	_, err = repo.Archive(ctx, snapshot, at)
	assert.ErrorIs(t, err, ErrReminderChanged)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.ReminderTime.Equal(later))
	assert.Equal(t, 0, countRows(t, db, "past_reminders"))

	renamed := newPending(1, later)
	renamed.Description = "new text"
	_, err = repo.Update(ctx, renamed)
	require.NoError(t, err)
	_, err = repo.Archive(ctx, rescheduled, at)
	assert.ErrorIs(t, err, ErrReminderChanged, "description is part of the snapshot")

	_, err = repo.Archive(ctx, renamed, at)
	require.NoError(t, err)
	assert.Equal(t, 0, countRows(t, db, "task_reminders"))
	assert.Equal(t, 1, countRows(t, db, "past_reminders"))
}

func TestArchive_RollsBackOnCancelledContext(t *testing.T) {
	repo, db := setupRepo(t)
	pending := newPending(1, time.Now())
	_, err := repo.Insert(context.Background(), pending)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.Archive(ctx, pending, time.Now())
	require.Error(t, err)

	assert.Equal(t, 1, countRows(t, db, "task_reminders"))
	assert.Equal(t, 0, countRows(t, db, "past_reminders"))
}

func TestListArchived_NewestFirstWithLimit(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for id := int64(1); id <= 3; id++ {
		p := newPending(id, at)
		p.TaskName = []string{"", "first", "second", "third"}[id]
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)
		_, err = repo.Archive(ctx, p, at.Add(time.Duration(id)*time.Minute))
		require.NoError(t, err)
	}

	got, err := repo.ListArchived(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].TaskName)
	assert.Equal(t, "second", got[1].TaskName)
}
