// Package scheduler runs ingestion at startup and on a cron schedule, never
// more than one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// JobID names the ingestion job in logs.
	JobID = "news_scraper"

	// DefaultSpec fires at minute 0 of every hour.
	DefaultSpec = "0 * * * *"
)

// Runner is one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// Config tunes the scheduler. Zero values use the defaults.
type Config struct {
	Spec       string
	Location   *time.Location
	RunOnStart bool
}

// Scheduler triggers a Runner from cron ticks and manual requests. Both paths
// go through TryRun and share one in-progress flag.
type Scheduler struct {
	runner     Runner
	cron       *cron.Cron
	spec       string
	runOnStart bool
	running    atomic.Bool
	startup    sync.WaitGroup
	logger     *slog.Logger
}

// New creates a scheduler. The cron spec is validated here.
func New(runner Runner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler", "job", JobID)

	if _, err := cron.ParseStandard(cfg.Spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.Spec, err)
	}

	return &Scheduler{
		runner:     runner,
		cron:       cron.New(cron.WithLocation(cfg.Location), cron.WithLogger(cronLogger{logger})),
		spec:       cfg.Spec,
		runOnStart: cfg.RunOnStart,
		logger:     logger,
	}, nil
}

// Start registers the job and starts the cron loop. Runs use ctx, so
// cancelling it stops in-flight work at its next pause or request.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runJob(ctx, "cron") }); err != nil {
		return fmt.Errorf("schedule %s: %w", JobID, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler: started", "spec", s.spec, "next", s.Next())

	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.runJob(ctx, "startup")
		}()
	}
	return nil
}

// Stop stops scheduling and returns a context done when running jobs,
// including the startup run, finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Scheduler: stopping")
	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.startup.Wait()
		cancel()
	}()
	return ctx
}

// Next returns the next scheduled fire time, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// TryRun runs the job unless one is already in progress, in which case ran is
// false. A panic in the runner is converted to an error.
func (s *Scheduler) TryRun(ctx context.Context) (count int, ran bool, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, false, nil
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			count, ran, err = 0, true, fmt.Errorf("%s panicked: %v", JobID, r)
		}
	}()

	count, err = s.runner.Run(ctx)
	return count, true, err
}

func (s *Scheduler) runJob(ctx context.Context, trigger string) {
	start := time.Now()
	count, ran, err := s.TryRun(ctx)
	switch {
	case !ran:
		s.logger.Warn("Scheduler: previous run still in progress, skipping", "trigger", trigger)
	case err != nil:
		s.logger.Error("Scheduler: run failed", "trigger", trigger, "added", count, "error", err, "duration", time.Since(start).Round(time.Millisecond))
	default:
		s.logger.Info("Scheduler: run completed", "trigger", trigger, "added", count, "duration", time.Since(start).Round(time.Millisecond))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
