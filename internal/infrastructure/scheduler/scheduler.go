// Package scheduler runs periodic housekeeping jobs such as purging the expired
// forecast cache slot.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler executes jobs on cron schedules. Runs of the same job never overlap.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a stopped scheduler.
func New(logger *zap.Logger) *Scheduler {
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under a standard cron spec or descriptor such as "@every 10m".
//
// Parameters:
//   - spec: Cron expression
//   - job: Job to run
//
// Returns:
//   - error: Invalid spec or a job with the same name already registered
func (s *Scheduler) Add(spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("job %s already scheduled", job.Name())
	}

	id, err := s.cron.AddFunc(spec, func() {
		_ = s.RunOnce(s.ctx, job)
	})

	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.entries[job.Name()] = id
	s.logger.Info("job scheduled", zap.String("job", job.Name()), zap.String("schedule", spec))

	return nil
}

// Start begins executing scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs, cancels running ones and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun reports when the named job runs next; zero if unknown or not started.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()

	if !ok {
		return time.Time{}
	}

	return s.cron.Entry(id).Next
}

// RunOnce executes job immediately and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", job.Name()),
			zap.Duration("duration", duration),
			zap.Error(err))

		return fmt.Errorf("%s run failed: %w", job.Name(), err)
	}

	s.logger.Debug("job completed", zap.String("job", job.Name()), zap.Duration("duration", duration))

	return nil
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
