// internal/domain/reminder/repository.go
package reminder

import (
	"context"
	"time"
)

// Repository defines the durable store operations used by the listener and the dispatcher.
type Repository interface {
	// Listener side. The boolean results report whether a row was touched;
	// an untouched row is not an error.
	Insert(ctx context.Context, r *PendingReminder) (bool, error)
	Update(ctx context.Context, r *PendingReminder) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*PendingReminder, error)

	// Dispatcher side.
	ListDue(ctx context.Context, now time.Time) ([]*PendingReminder, error)
	// Archive writes the archive row and removes the pending row in one transaction.
	Archive(ctx context.Context, r *PendingReminder, movedAt time.Time) (*ArchivedReminder, error)

	ListArchived(ctx context.Context, limit int) ([]*ArchivedReminder, error)
}

// ChangeSource delivers raw change notifications in the order they were published.
type ChangeSource interface {
	// Next blocks until a payload arrives, ctx is done or the subscription breaks.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
