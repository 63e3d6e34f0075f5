// internal/domain/reminder/event.go
package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Operation is the kind of row change published on the notification channel.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// ErrMalformedEvent marks payloads that cannot be reconciled.
var ErrMalformedEvent = errors.New("malformed change event")

// ChangedRow mirrors a row of the upstream task_reminders table.
type ChangedRow struct {
	ID             *int64  `json:"id"`
	TaskID         int64   `json:"task_id"`
	Reminder       string  `json:"reminder"`
	Created        string  `json:"created"`
	RelativePeriod *int64  `json:"relative_period"`
	RelativeTo     *string `json:"relative_to"`
}

// Task carries the owning task fields joined in by the trigger.
type Task struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ChangeEvent is a decoded notification payload.
type ChangeEvent struct {
	Operation  Operation   `json:"operation"`
	ChangedRow *ChangedRow `json:"changed_row"`
	Task       *Task       `json:"task"`
}

// DecodeChangeEvent parses a raw payload. Payloads without a changed_row id are rejected.
func DecodeChangeEvent(payload []byte) (*ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ChangedRow == nil {
		return nil, fmt.Errorf("%w: missing changed_row", ErrMalformedEvent)
	}
	if ev.ChangedRow.ID == nil {
		return nil, fmt.Errorf("%w: missing changed_row.id", ErrMalformedEvent)
	}
	return &ev, nil
}

// ReminderID returns the id of the changed row.
func (e *ChangeEvent) ReminderID() int64 {
	return *e.ChangedRow.ID
}

// TaskName derives the display name, falling back to DefaultTaskName.
func (e *ChangeEvent) TaskName() string {
	if e.Task == nil || e.Task.Title == nil {
		return DefaultTaskName
	}
	return *e.Task.Title
}

// Description returns the sanitized task description.
func (e *ChangeEvent) Description() string {
	if e.Task == nil || e.Task.Description == nil {
		return ""
	}
	return SanitizeDescription(*e.Task.Description)
}

// PendingReminder builds the row an INSERT or UPDATE event should leave in the store.
func (e *ChangeEvent) PendingReminder() (*PendingReminder, error) {
	row := e.ChangedRow
	reminderTime, err := ParseTimestamp(row.Reminder)
	if err != nil {
		return nil, fmt.Errorf("%w: reminder: %v", ErrMalformedEvent, err)
	}
	created, err := ParseTimestamp(row.Created)
	if err != nil {
		return nil, fmt.Errorf("%w: created: %v", ErrMalformedEvent, err)
	}
	return &PendingReminder{
		ID:             *row.ID,
		TaskID:         row.TaskID,
		TaskName:       e.TaskName(),
		Description:    e.Description(),
		ReminderTime:   reminderTime,
		Created:        created,
		RelativePeriod: row.RelativePeriod,
		RelativeTo:     row.RelativeTo,
	}, nil
}

// Layouts produced by Postgres row_to_json and by ISO8601 writers.
// Values without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a timestamp and normalizes it to UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
