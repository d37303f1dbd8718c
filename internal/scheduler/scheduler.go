package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled refresh.
type TickFunc func(ctx context.Context, scheduledAt time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval      time.Duration
	AlignToBucket bool
	StartupDelay  time.Duration
	RunOnStart    bool
}

// Scheduler drives periodic refresh runs, optionally aligned to wall-clock
// buckets so 6h intervals fire at 00/06/12/18 UTC.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function on schedule until ctx is cancelled.
// Tick errors are logged, never fatal; the next tick still fires.
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

	if s.opts.RunOnStart {
		now := time.Now().UTC()
		s.logger.Info().Time("scheduled_at", now).Msg("executing startup refresh")
		if err := tick(ctx, now); err != nil {
			s.logger.Error().Err(err).Msg("startup refresh failed")
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_refresh", next).Msg("waiting for next refresh")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		scheduledAt := next
		s.logger.Info().Time("scheduled_at", scheduledAt).Msg("executing scheduled refresh")

		if err := tick(ctx, scheduledAt); err != nil {
			s.logger.Error().Err(err).Time("scheduled_at", scheduledAt).Msg("scheduled refresh failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToBucket {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}
