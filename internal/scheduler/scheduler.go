package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cruise-price-tracker/internal/logging"
)

// TickFunc is invoked once per firing with the time the firing was due.
type TickFunc func(ctx context.Context, due time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler runs a job immediately and then on a fixed interval. Runs never overlap.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logging.Component(logger, "scheduler"),
		now:    time.Now,
	}
}

// Interval reports the configured firing interval.
func (s *Scheduler) Interval() time.Duration {
	return s.opts.Interval
}

// Run blocks, invoking tick inline until ctx is cancelled. Firings missed while a tick
// overran collapse into a single catch-up run.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.now().UTC()
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.logger.Info().Time("due", next).Msg("executing scheduled run")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("due", next).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
		if now := s.now().UTC(); next.Before(now) {
			missed := int(now.Sub(next)/s.opts.Interval) + 1
			s.logger.Warn().
				Int("missed_runs", missed).
				Dur("interval", s.opts.Interval).
				Msg("run overran its interval; coalescing missed runs")
			next = now
		}
	}
}
