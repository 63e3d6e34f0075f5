// internal/domain/reminder/reminder.go
package reminder

import "time"

// DefaultTaskName is used when a change event carries no task title.
const DefaultTaskName = "Unknown Task"

// PendingReminder is a scheduled notification that has not been processed yet.
// Corresponds to the 'task_reminders' table of the local store.
type PendingReminder struct {
	ID             int64 // External reminder id, primary key
	TaskID         int64
	TaskName       string
	Description    string    // Already sanitized
	ReminderTime   time.Time // Due instant
	Created        time.Time
	RelativePeriod *int64  // Passed through untouched
	RelativeTo     *string // Passed through untouched
}

// IsDue reports whether the reminder should be delivered at now.
// The comparison is inclusive.
func (r *PendingReminder) IsDue(now time.Time) bool {
	return !r.ReminderTime.After(now)
}

// ArchivedReminder is the immutable record left behind once a reminder was processed.
// Corresponds to the 'past_reminders' table.
type ArchivedReminder struct {
	ID           int64 // AUTOINCREMENT in DB
	TaskName     string
	ReminderTime time.Time
	Description  string
	MovedAt      time.Time
}
