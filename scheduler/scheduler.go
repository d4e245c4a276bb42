// Package scheduler runs watch cycles on a jittered interval and keeps a
// dead-man's switch on the cycle log.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hazyhaar/simwatch/store"
)

// CycleFunc runs one watch cycle.
type CycleFunc func(ctx context.Context) error

// Config configures the scheduler.
type Config struct {
	// Interval between cycle starts. Default: 6 hours.
	Interval time.Duration
	// Jitter spreads cycle starts by a random fraction of the interval in
	// [0, Jitter), so restarts across deployments don't align crawls.
	Jitter float64
	// DeadManAfter is how stale the last finished cycle may be before the
	// scheduler starts alerting. Default: 3x Interval.
	DeadManAfter time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 6 * time.Hour
	}
	if c.Jitter < 0 || c.Jitter >= 1 {
		c.Jitter = 0
	}
	if c.DeadManAfter <= 0 {
		c.DeadManAfter = 3 * c.Interval
	}
}

// Scheduler drives the pipeline on a timer.
type Scheduler struct {
	cycle   CycleFunc
	st      *store.Store
	config  Config
	logger  *slog.Logger
	now     func() time.Time
	onStale func(ctx context.Context, age time.Duration)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithStaleAlert registers a callback fired when the dead-man check trips,
// at most once per scheduled tick. Webhook alerting hangs off this.
func WithStaleAlert(fn func(ctx context.Context, age time.Duration)) Option {
	return func(s *Scheduler) { s.onStale = fn }
}

// New creates a Scheduler.
func New(cycle CycleFunc, st *store.Store, cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cycle:  cycle,
		st:     st,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately; each subsequent one waits Interval plus jitter. A failing
// cycle is logged and the schedule keeps going.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	for {
		wait := s.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.checkDeadMan(ctx)
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.cycle(ctx); err != nil {
		s.logger.Error("scheduler: cycle failed", "error", err)
	}
}

// nextWait returns the interval stretched by the configured jitter.
func (s *Scheduler) nextWait() time.Duration {
	wait := s.config.Interval
	if s.config.Jitter > 0 {
		wait += time.Duration(rand.Float64() * s.config.Jitter * float64(s.config.Interval))
	}
	return wait
}

// checkDeadMan alerts when the last recorded cycle is older than
// DeadManAfter. Cycles can silently stop finishing (wedged producer, full
// disk); the log is the ground truth, not this process's own loop.
func (s *Scheduler) checkDeadMan(ctx context.Context) {
	last, err := s.st.LastCycle(ctx)
	if err != nil {
		s.logger.Warn("scheduler: dead-man check failed", "error", err)
		return
	}
	if last == nil {
		return
	}
	age := s.now().Sub(last.FinishedAt)
	if age > s.config.DeadManAfter {
		s.logger.Error("scheduler: no completed cycle within dead-man window",
			"last_cycle", last.FinishedAt, "age", age, "window", s.config.DeadManAfter)
		if s.onStale != nil {
			s.onStale(ctx, age)
		}
	}
}

// Stale reports whether the last finished cycle is older than the dead-man
// window. The health endpoint exposes this.
func (s *Scheduler) Stale(ctx context.Context) (bool, error) {
	last, err := s.st.LastCycle(ctx)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return s.now().Sub(last.FinishedAt) > s.config.DeadManAfter, nil
}
