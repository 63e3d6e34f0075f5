package app

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reminder_relay/internal/domain/reminder"
	idb "reminder_relay/internal/infra/database"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*idb.SQLiteReminderRepository, *sql.DB) {
	t.Helper()
	db, err := idb.NewSQLiteConnection(filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return idb.NewSQLiteReminderRepository(db), db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// flakyRepo wraps a repository and fails selected operations.
type flakyRepo struct {
	reminder.Repository
	failInsertID int64
	listErr      error
	archiveErr   error
}

var errStore = errors.New("disk I/O error")

func (f *flakyRepo) Insert(ctx context.Context, r *reminder.PendingReminder) (bool, error) {
	if r.ID == f.failInsertID {
		return false, errStore
	}
	return f.Repository.Insert(ctx, r)
}

func (f *flakyRepo) ListDue(ctx context.Context, now time.Time) ([]*reminder.PendingReminder, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.ListDue(ctx, now)
}

func (f *flakyRepo) Archive(ctx context.Context, r *reminder.PendingReminder, movedAt time.Time) (*reminder.ArchivedReminder, error) {
	if f.archiveErr != nil {
		return nil, f.archiveErr
	}
	return f.Repository.Archive(ctx, r, movedAt)
}

// fakeSource replays payloads, then returns err or blocks until ctx is done when err is nil.
type fakeSource struct {
	mu       sync.Mutex
	payloads []string
	err      error
	closed   bool
}

func (s *fakeSource) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if len(s.payloads) > 0 {
		p := s.payloads[0]
		s.payloads = s.payloads[1:]
		s.mu.Unlock()
		return []byte(p), nil
	}
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeNotifier records deliveries and fails for titles listed in failFor.
type fakeNotifier struct {
	mu        sync.Mutex
	delivered []string
	failFor   map[string]error
}

func (n *fakeNotifier) Deliver(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, title+"|"+body)
	if err, ok := n.failFor[title]; ok {
		return err
	}
	return nil
}
