// Package pgnotify subscribes to a PostgreSQL LISTEN/NOTIFY channel.
package pgnotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder_relay/internal/domain/reminder"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	minReconnectInterval = 1 * time.Second
	maxReconnectInterval = 1 * time.Minute
)

// ErrSourceClosed is returned by Next once the underlying listener has shut down.
var ErrSourceClosed = errors.New("notification listener closed")

var _ reminder.ChangeSource = (*Source)(nil)

// Source is a reminder.ChangeSource backed by a pq.Listener.
type Source struct {
	notify       <-chan *pq.Notification
	ping         func() error
	close        func() error
	pingInterval time.Duration
	logger       logrus.FieldLogger
}

// Open connects to PostgreSQL and starts listening on channel.
// It blocks until the LISTEN is acknowledged or ctx is done.
func Open(ctx context.Context, dsn, channel string, pingInterval time.Duration, logger logrus.FieldLogger) (*Source, error) {
	logger = logger.WithField("channel", channel)
	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, eventLogger(logger))

	listened := make(chan error, 1)
	go func() { listened <- listener.Listen(channel) }()

	select {
	case err := <-listened:
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to listen on channel %s: %w", channel, err)
		}
	case <-ctx.Done():
		listener.Close()
		return nil, ctx.Err()
	}

	logger.Info("Listening for PostgreSQL notifications")
	return &Source{
		notify:       listener.Notify,
		ping:         listener.Ping,
		close:        listener.Close,
		pingInterval: pingInterval,
		logger:       logger,
	}, nil
}

// Next returns the payload of the next notification. An idle connection is
// pinged every pingInterval and a failed ping is reported as an error.
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	idle := time.NewTimer(s.pingInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case n, ok := <-s.notify:
			if !ok {
				return nil, ErrSourceClosed
			}
			if n == nil {
				// pq sends nil after re-establishing the connection.
				s.logger.Warn("Notification connection re-established, changes published meanwhile were missed")
				continue
			}
			return []byte(n.Extra), nil
		case <-idle.C:
			if err := s.ping(); err != nil {
				return nil, fmt.Errorf("notification connection ping failed: %w", err)
			}
			idle.Reset(s.pingInterval)
		}
	}
}

func (s *Source) Close() error {
	return s.close()
}

func eventLogger(logger logrus.FieldLogger) pq.EventCallbackType {
	return func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			logger.Debug("Notification connection established")
		case pq.ListenerEventDisconnected:
			logger.WithError(err).Warn("Notification connection lost")
		case pq.ListenerEventReconnected:
			logger.Info("Notification connection reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.WithError(err).Error("Notification connection attempt failed")
		}
	}
}
