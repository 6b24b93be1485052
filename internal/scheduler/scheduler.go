package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/pkg/logger"
)

// Runner executes one pass of the weather workflow.
type Runner interface {
	Run(ctx context.Context) (weather.RunResult, error)
}

// Options controls when and how persistently runs are attempted.
type Options struct {
	Schedule   string        // standard cron expression or descriptor such as @daily
	Retries    int           // extra attempts after a failed run
	RetryDelay time.Duration // pause between attempts
	RunTimeout time.Duration // per-attempt deadline; zero disables it
}

// Scheduler triggers the workflow on a cron schedule and owns the retry policy.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	opts      Options
	l         *logger.Logger

	// base context for scheduled runs, cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc

	// serializes scheduled ticks with manual triggers
	mu sync.Mutex
}

// New creates a new Scheduler.
func New(runner Runner, opts Options, l *logger.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if opts.Retries < 0 {
		opts.Retries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		ctx:       ctx,
		cancel:    cancel,
		scheduler: s,
		runner:    runner,
		opts:      opts,
		l:         l,
	}
}

// Start schedules the job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron(s.opts.Schedule).Do(func() {
		s.l.Info("scheduler: running weather job", map[string]any{"schedule": s.opts.Schedule})
		if _, err := s.RunNow(s.ctx); err != nil {
			s.l.Warning("scheduler: weather job failed", map[string]any{"err": err.Error()})
			return
		}
		s.l.Info("scheduler: completed weather job")
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.opts.Schedule, err)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop cancels a scheduled run in progress, including its retry wait,
// then stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunNow runs the workflow synchronously, retrying failed attempts.
// It returns the result of the last attempt.
func (s *Scheduler) RunNow(ctx context.Context) (weather.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		run weather.RunResult
		err error
	)
	if err := ctx.Err(); err != nil {
		return run, err
	}
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			s.l.Info("scheduler: retrying weather run", map[string]any{
				"attempt": attempt,
				"delay":   s.opts.RetryDelay.String(),
			})
			if werr := wait(ctx, s.opts.RetryDelay); werr != nil {
				return run, fmt.Errorf("%w: retry aborted: %w", err, werr)
			}
		}

		run, err = s.attempt(ctx)
		if err == nil {
			return run, nil
		}
	}
	return run, err
}

func (s *Scheduler) attempt(ctx context.Context) (weather.RunResult, error) {
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}
	return s.runner.Run(ctx)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
