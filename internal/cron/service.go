package cron

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"

	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration

	// JobTimeout bounds a single job; keep it below the lock TTL.
	JobTimeout time.Duration
}

// Service executes registered cron jobs on a fixed cadence.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   defaultInterval,
		jobTimeout: defaultJobTimeout,
		now:        time.Now,
	}
	if params.Interval > 0 {
		s.interval = params.Interval
	}
	if params.JobTimeout > 0 {
		s.jobTimeout = params.JobTimeout
	}
	return s, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunOnce runs every job a single time if this instance wins the lock.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.RunSelected(ctx)
}

// RunSelected runs the named jobs (all of them when names is empty) under the
// lock. Job failures do not stop later jobs; they are combined into the
// returned error.
func (s *Service) RunSelected(ctx context.Context, names ...string) error {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return err
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.ObserveCycle(metrics.CycleLockError)
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.ObserveCycle(metrics.CycleLockHeld)
		s.logg.Info(ctx, "cron.cycle.skipped_lock_held")
		return nil
	}
	s.metrics.ObserveCycle(metrics.CycleRan)
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	var errs error
	for _, job := range jobs {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(jobs)), "cron.cycle.complete")
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := s.now()
	rows, err := s.invoke(jobCtx, job)
	finished := s.now()
	elapsed := finished.Sub(start)
	s.metrics.ObserveRun(job.Name(), rows, elapsed, finished, err)

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms":   elapsed.Milliseconds(),
		"rows_affected": rows,
	})
	if err != nil {
		s.logg.Error(jobCtx, "cron.job.failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(jobCtx, "cron.job.completed")
	return nil
}

// invoke runs job under the per-job deadline. A panic is reported as the
// job's error so the remaining jobs and the loop keep going.
func (s *Service) invoke(ctx context.Context, job Job) (rows int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stack", string(debug.Stack())), "cron.job.panic")
			rows, err = 0, fmt.Errorf("panic: %v", rec)
		}
	}()
	return job.Run(ctx)
}
