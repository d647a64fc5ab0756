package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"ancine-dash/internal/domain"
)

// TriggerSchedule is the ledger trigger of cron-started runs.
const TriggerSchedule = "schedule"

// Runner is the pipeline surface the scheduler drives.
type Runner interface {
	RunTriggered(ctx context.Context, trigger string) (*domain.Report, error)
}

// Scheduler re-runs the pipeline on a cron schedule. A tick that fires while
// the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
	entry  cron.EntryID
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ingest-scheduler")
	cl := cronLogger{logger}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		logger: logger,
	}
}

// Start registers spec and starts the cron loop. Runs use ctx, so cancelling
// it aborts a run in progress.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	id, err := s.cron.AddFunc(spec, func() { s.trigger(ctx) })
	if err != nil {
		return fmt.Errorf("invalid ingest schedule %q: %w", spec, err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info("ingest scheduler started", "schedule", spec, "next", s.cron.Entry(id).Next)
	return nil
}

// Stop stops the cron loop and returns a context that is done once any
// running job has finished.
func (s *Scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.logger.Info("ingest scheduler stopped")
	return done
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunTriggered(ctx, TriggerSchedule)
	if err != nil {
		s.logger.Warn("scheduled ingest failed", "error", err)
		return
	}
	s.logger.Info("scheduled ingest finished",
		"run_id", report.RunID,
		"converted", report.Count(domain.OutcomeConverted),
		"failed", report.Count(domain.OutcomeFailed),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
