package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"floodguard/internal/models"
	"floodguard/internal/services"
	"floodguard/pkg/logging"
)

// SyncRunner runs one oracle cycle
type SyncRunner interface {
	RunOnce(ctx context.Context, station string) (*services.SyncResult, error)
}

// Scheduler runs the sync cycle on a cron schedule. Overlapping ticks are
// skipped while a cycle is still running.
type Scheduler struct {
	cron    *cron.Cron
	runner  SyncRunner
	station string
	timeout time.Duration
	logger  *logging.StructuredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler; timeout bounds each cycle when positive
func NewScheduler(runner SyncRunner, station string, timeout time.Duration, logger *logging.StructuredLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner:  runner,
		station: station,
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds the sync job with a standard five-field cron spec
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow() }); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}
	s.logger.Info(s.ctx, "[SCHEDULER] Sync job registered", logging.Fields{
		"schedule": spec,
		"station":  s.station,
	})
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "[SCHEDULER] Scheduler started", logging.Fields{})
}

// Stop stops scheduling, cancels a running cycle and waits for it to return
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.logger.Info(context.Background(), "[SCHEDULER] Scheduler stopped", logging.Fields{})
}

// RunNow executes one cycle immediately
func (s *Scheduler) RunNow() (*services.SyncResult, error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.runner.RunOnce(ctx, s.station)
	if err != nil {
		s.logger.Error(ctx, "[SCHEDULER_RUN_FAILED] Scheduled sync failed", logging.Fields{
			"station": s.station,
			"kind":    models.KindOf(err),
		}, err)
	}
	return result, err
}

// cronLogger routes cron's internal logging into the structured logger
type cronLogger struct {
	logger *logging.StructuredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), "[CRON] "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), "[CRON_ERROR] "+msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logging.Fields {
	fields := logging.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
