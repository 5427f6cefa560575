package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every polling interval.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	Jitter   time.Duration
	Name     string
}

// Scheduler drives periodic execution of polling jobs.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	log := logger.With().Str("component", "scheduler")
	if opts.Name != "" {
		log = log.Str("job", opts.Name)
	}
	return &Scheduler{opts: opts, logger: log.Logger()}
}

// Run blocks, invoking the tick function once immediately and then on every
// interval until ctx is cancelled. Intervals that elapse while a tick is
// still executing are dropped, never queued.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.Jitter > 0 {
		delay := time.Duration(rand.Int63n(int64(s.opts.Jitter)))
		timer := time.NewTimer(delay)
		s.logger.Debug().Dur("delay", delay).Msg("applying startup jitter")
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.execute(ctx, tick, time.Now())

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.execute(ctx, tick, now)
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, now time.Time) {
	s.logger.Debug().Time("tick", now).Msg("executing scheduled tick")
	if err := tick(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("tick execution failed")
	}
}
