// internal/app/listener.go
package app

import (
	"context"
	"fmt"
	"time"

	"reminder_relay/internal/domain/reminder"

	"github.com/sirupsen/logrus"
)

const (
	defaultMinResubscribeDelay = 1 * time.Second
	defaultMaxResubscribeDelay = 1 * time.Minute
)

// SourceOpener subscribes to the change channel. It is called again after
// every broken subscription.
type SourceOpener func(ctx context.Context) (reminder.ChangeSource, error)

// Listener reconciles change events into the pending reminders table.
type Listener struct {
	repo     reminder.Repository
	open     SourceOpener
	logger   logrus.FieldLogger
	minDelay time.Duration
	maxDelay time.Duration
}

func NewListener(repo reminder.Repository, open SourceOpener, logger logrus.FieldLogger) *Listener {
	return &Listener{
		repo:     repo,
		open:     open,
		logger:   logger,
		minDelay: defaultMinResubscribeDelay,
		maxDelay: defaultMaxResubscribeDelay,
	}
}

// Run consumes events until ctx is done. A failed or broken subscription is
// re-opened with exponential backoff; replaying events is harmless because
// inserts ignore known ids and updates/deletes of unknown ids are no-ops.
func (l *Listener) Run(ctx context.Context) error {
	delay := l.minDelay
	for {
		src, err := l.open(ctx)
		if err == nil {
			delay = l.minDelay
			err = l.consume(ctx, src)
			if cerr := src.Close(); cerr != nil {
				l.logger.WithError(cerr).Warn("Error closing change source")
			}
		}
		if ctx.Err() != nil {
			l.logger.Info("Change listener stopped")
			return nil
		}

		l.logger.WithError(err).WithField("retry_in", delay.String()).Error("Change subscription failed")
		select {
		case <-ctx.Done():
			l.logger.Info("Change listener stopped")
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > l.maxDelay {
			delay = l.maxDelay
		}
	}
}

// consume applies events in arrival order. Only a source error ends it.
func (l *Listener) consume(ctx context.Context, src reminder.ChangeSource) error {
	for {
		payload, err := src.Next(ctx)
		if err != nil {
			return err
		}
		l.logger.WithField("payload", string(payload)).Debug("Notification received")

		if err := l.HandlePayload(ctx, payload); err != nil {
			l.logger.WithError(err).WithField("payload", string(payload)).Error("Dropped change event")
		}
	}
}

// HandlePayload decodes one event and applies it to the store.
// Updates and deletes of unknown reminders are not errors. A store write that
// has started is not cut short by ctx being cancelled.
func (l *Listener) HandlePayload(ctx context.Context, payload []byte) error {
	ev, err := reminder.DecodeChangeEvent(payload)
	if err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	log := l.logger.WithFields(logrus.Fields{
		"operation":   ev.Operation,
		"reminder_id": ev.ReminderID(),
	})

	switch ev.Operation {
	case reminder.OperationInsert:
		r, err := ev.PendingReminder()
		if err != nil {
			return err
		}
		inserted, err := l.repo.Insert(ctx, r)
		if err != nil {
			return fmt.Errorf("insert reminder %d: %w", r.ID, err)
		}
		if !inserted {
			log.Debug("Reminder already stored, insert ignored")
			return nil
		}
		log.WithField("reminder_time", r.ReminderTime).Info("Inserted pending reminder")

	case reminder.OperationUpdate:
		r, err := ev.PendingReminder()
		if err != nil {
			return err
		}
		updated, err := l.repo.Update(ctx, r)
		if err != nil {
			return fmt.Errorf("update reminder %d: %w", r.ID, err)
		}
		if !updated {
			log.Debug("Reminder not stored, update ignored")
			return nil
		}
		log.WithField("reminder_time", r.ReminderTime).Info("Updated pending reminder")

	case reminder.OperationDelete:
		deleted, err := l.repo.Delete(ctx, ev.ReminderID())
		if err != nil {
			return fmt.Errorf("delete reminder %d: %w", ev.ReminderID(), err)
		}
		if !deleted {
			log.Debug("Reminder not stored, delete ignored")
			return nil
		}
		log.Info("Deleted pending reminder")

	default:
		log.Warn("Unhandled operation")
	}
	return nil
}
