// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder_relay/internal/domain/push"
	"reminder_relay/internal/domain/reminder"
	idb "reminder_relay/internal/infra/database" // For ErrReminderNotFound

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CycleResult summarizes one pass over the due reminders.
type CycleResult struct {
	Due       int
	Delivered int
	Failed    int // Delivery attempts that failed; these are archived anyway
	Archived  int
	Skipped   int // Left pending: archive failed or the cycle was cancelled
}

// Dispatcher delivers due reminders and moves them to the archive.
type Dispatcher struct {
	repo     reminder.Repository
	notifier push.Notifier
	clock    func() time.Time
	logger   logrus.FieldLogger
}

func NewDispatcher(repo reminder.Repository, notifier push.Notifier, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		notifier: notifier,
		clock:    time.Now,
		logger:   logger,
	}
}

// ProcessDue runs one cycle for every reminder due at now.
//
// Each reminder gets a single delivery attempt and is archived whatever the
// outcome. A failed delivery is not retried. Only a failing due query aborts
// the cycle; per-reminder errors are logged and the loop moves on.
func (d *Dispatcher) ProcessDue(ctx context.Context, now time.Time) (CycleResult, error) {
	var result CycleResult
	log := d.logger.WithField("cycle_id", uuid.NewString())
	now = now.UTC()

	log.WithField("now", now.Format(time.RFC3339)).Info("Checking for due reminders")
	due, err := d.repo.ListDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list due reminders: %w", err)
	}
	result.Due = len(due)
	log.Infof("Found %d reminders to process", len(due))

	for i, r := range due {
		if ctx.Err() != nil {
			// Untouched reminders stay pending for the next run.
			result.Skipped += len(due) - i
			log.WithField("remaining", len(due)-i).Warn("Cycle cancelled, leaving remaining reminders pending")
			break
		}
		d.process(ctx, log, r, &result)
	}

	log.WithFields(logrus.Fields{
		"due":       result.Due,
		"delivered": result.Delivered,
		"failed":    result.Failed,
		"archived":  result.Archived,
		"skipped":   result.Skipped,
	}).Info("Finished processing reminders")
	return result, nil
}

// process delivers and archives one reminder. Once started it runs to the
// end even if ctx is cancelled, so no delivery is left without its archive row.
func (d *Dispatcher) process(ctx context.Context, log logrus.FieldLogger, r *reminder.PendingReminder, result *CycleResult) {
	ctx = context.WithoutCancel(ctx)
	log = log.WithFields(logrus.Fields{
		"reminder_id":   r.ID,
		"task":          r.TaskName,
		"reminder_time": r.ReminderTime.Format(time.RFC3339),
	})

	if err := d.notifier.Deliver(ctx, r.TaskName, r.Description); err != nil {
		result.Failed++
		log.WithError(err).Error("Failed to send notification")
	} else {
		result.Delivered++
		log.Info("Notification sent")
	}

	archived, err := d.repo.Archive(ctx, r, d.clock())
	switch {
	case errors.Is(err, idb.ErrReminderNotFound):
		// Deleted upstream while we were delivering.
		result.Skipped++
		log.Warn("Reminder vanished before it could be archived")
	case errors.Is(err, idb.ErrReminderChanged):
		result.Skipped++
		if current, getErr := d.repo.Get(ctx, r.ID); getErr == nil {
			log = log.WithField("new_reminder_time", current.ReminderTime.Format(time.RFC3339))
		}
		log.Warn("Reminder changed upstream while being delivered, it stays pending")
	case err != nil:
		result.Skipped++
		log.WithError(err).Error("Failed to archive reminder, it stays pending")
	default:
		result.Archived++
		log.WithField("archive_id", archived.ID).Info("Reminder moved to past reminders")
	}
}
