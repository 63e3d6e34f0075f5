package scheduler

import (
	"context"
	"fmt"
	"time"

	"reminder_relay/internal/app" // For CycleResult

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DueProcessor runs one due-reminder cycle.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (app.CycleResult, error)
}

// DueScheduler triggers a due-reminder cycle every interval, measured from
// the start of one cycle to the start of the next. A cycle that is still
// running when the next one is due causes that tick to be skipped.
type DueScheduler struct {
	cronEngine *cron.Cron
	processor  DueProcessor
	logger     logrus.FieldLogger
	interval   time.Duration
	clock      func() time.Time
}

func NewDueScheduler(processor DueProcessor, logger logrus.FieldLogger, interval time.Duration) *DueScheduler {
	return &DueScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger}),
		),
		processor: processor,
		logger:    logger,
		interval:  interval,
		clock:     time.Now,
	}
}

// Run processes due reminders once right away, then on every tick until ctx
// is done. It returns after the in-flight cycle, if any, has finished.
func (s *DueScheduler) Run(ctx context.Context) error {
	if s.interval < time.Second {
		return fmt.Errorf("scan interval %s is below the one second cron resolution", s.interval)
	}

	s.logger.WithField("interval", s.interval.String()).Info("Starting due reminder scheduler...")

	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).Then(cron.FuncJob(func() {
		s.RunCycle(ctx)
	}))
	s.cronEngine.Schedule(cron.Every(s.interval), job)
	s.cronEngine.Start()
	// Ticks are counted from here, the initial cycle shares the skip guard.
	job.Run()

	<-ctx.Done()
	s.Stop()
	return nil
}

// RunCycle runs one cycle and logs its outcome. Errors never escape.
func (s *DueScheduler) RunCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// A cycle must not stall the next one.
	cycleCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if _, err := s.processor.ProcessDue(cycleCtx, s.clock()); err != nil {
		s.logger.WithError(err).Error("Error during due reminder processing")
		return
	}
	s.logger.Debug("Waiting for the next check...")
}

func (s *DueScheduler) Stop() {
	s.logger.Info("Stopping due reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops scheduling new cycles, waits for the running one.
	<-ctx.Done()
	s.logger.Info("Due reminder scheduler gracefully stopped.")
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
