// internal/app/supervisor.go
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Runner is a long-running task that returns once ctx is done.
type Runner interface {
	Run(ctx context.Context) error
}

type namedRunner struct {
	name   string
	runner Runner
}

// Supervisor runs independent loops side by side. The first loop to fail
// cancels the others.
type Supervisor struct {
	runners []namedRunner
	logger  logrus.FieldLogger
}

func NewSupervisor(logger logrus.FieldLogger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Add registers a runner; call before Run.
func (s *Supervisor) Add(name string, r Runner) *Supervisor {
	s.runners = append(s.runners, namedRunner{name: name, runner: r})
	return s
}

func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, nr := range s.runners {
		nr := nr
		g.Go(func() error {
			s.logger.WithField("task", nr.name).Info("Task started")
			if err := nr.runner.Run(ctx); err != nil {
				s.logger.WithField("task", nr.name).WithError(err).Error("Task failed")
				return fmt.Errorf("%s: %w", nr.name, err)
			}
			s.logger.WithField("task", nr.name).Info("Task stopped")
			return nil
		})
	}
	return g.Wait()
}
