package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"

	"newsintel/internal/usecase/ingest"
	"newsintel/internal/usecase/retention"
)

// ErrCyclePanicked wraps a panic recovered from a fetch or cleanup run.
var ErrCyclePanicked = errors.New("scheduled job panicked")

// Clock abstracts time so the scheduler can be driven without real waits.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetcher runs one fetch cycle over the search terms.
type Fetcher interface {
	RunFetchCycle(ctx context.Context, terms []string) (*ingest.CycleStats, error)
}

// Sweeper runs one retention sweep.
type Sweeper interface {
	Sweep(ctx context.Context, retentionDays int) (*retention.SweepStats, error)
}

// ReadinessSetter receives the scheduler's running state.
type ReadinessSetter interface {
	SetReady(ready bool)
}

// SLORecorder receives the outcome of every fetch cycle.
type SLORecorder interface {
	RecordCycle(success bool, inserted, enrichFailed int64, at time.Time)
}

// fetchMarker is implemented by readiness sinks that also track the last
// successful fetch, such as HealthServer.
type fetchMarker interface {
	MarkFetched(at time.Time)
}

// Scheduler drives fetch cycles and retention sweeps on two independent
// cadences. It keeps two deadlines, next fetch and next cleanup, and sleeps
// until the next fetch after each iteration.
type Scheduler struct {
	fetcher Fetcher
	sweeper Sweeper
	terms   []string
	cfg     WorkerConfig

	fetchSchedule   cron.Schedule
	cleanupSchedule cron.Schedule

	clock     Clock
	logger    *slog.Logger
	metrics   *WorkerMetrics
	readiness ReadinessSetter
	slo       SLORecorder
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics records job runs in m.
func WithMetrics(m *WorkerMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithReadiness reports the running state to r, typically a HealthServer.
func WithReadiness(r ReadinessSetter) Option {
	return func(s *Scheduler) { s.readiness = r }
}

// WithSLO reports each fetch cycle to r.
func WithSLO(r SLORecorder) Option {
	return func(s *Scheduler) { s.slo = r }
}

// NewScheduler parses the cadences in cfg and returns a Scheduler.
func NewScheduler(fetcher Fetcher, sweeper Sweeper, terms []string, cfg WorkerConfig, opts ...Option) (*Scheduler, error) {
	fetchSchedule, err := cron.ParseStandard(cfg.FetchSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse fetch schedule %q: %w", cfg.FetchSchedule, err)
	}
	cleanupSchedule, err := cron.ParseStandard(cfg.CleanupSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultConfig().ErrorBackoff
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultConfig().CycleTimeout
	}

	s := &Scheduler{
		fetcher:         fetcher,
		sweeper:         sweeper,
		terms:           append([]string(nil), terms...),
		cfg:             cfg,
		fetchSchedule:   fetchSchedule,
		cleanupSchedule: cleanupSchedule,
		clock:           RealClock(),
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run loops until ctx is cancelled and then returns nil.
//
// Cancellation is observed only between iterations and during sleeps; a
// running fetch cycle or sweep is never interrupted by ctx, only by
// CycleTimeout. A failed or panicking fetch cycle is logged and followed by
// ErrorBackoff; the cleanup check is skipped for that iteration.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setReady(true)
	defer s.setReady(false)

	nextCleanup := s.cleanupSchedule.Next(s.clock.Now())
	s.logger.Info("scheduler started",
		slog.String("fetch_schedule", s.cfg.FetchSchedule),
		slog.String("cleanup_schedule", s.cfg.CleanupSchedule),
		slog.Int("retention_days", s.cfg.RetentionDays),
		slog.Int("terms", len(s.terms)),
		slog.Time("next_cleanup", nextCleanup))

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}

		cycleStart := s.clock.Now()
		if err := s.runFetch(ctx); err != nil {
			s.logger.Error("fetch cycle failed, backing off",
				slog.Duration("backoff", s.cfg.ErrorBackoff),
				slog.Any("error", err))
			s.noteSkippedCleanup(nextCleanup)
			if s.clock.Sleep(ctx, s.cfg.ErrorBackoff) != nil {
				s.logger.Info("scheduler stopped")
				return nil
			}
			continue
		}

		now := s.clock.Now()
		if !now.Before(nextCleanup) {
			s.runCleanup(ctx)
			now = s.clock.Now()
			nextCleanup = s.cleanupSchedule.Next(now)
		}

		nextFetch := s.fetchSchedule.Next(cycleStart)
		wait := nextFetch.Sub(now)
		s.logger.Info(fmt.Sprintf("next fetch in %.1f minutes (cleanup in %.2f hours)",
			max(wait, 0).Minutes(), nextCleanup.Sub(now).Hours()),
			slog.Time("next_fetch", nextFetch),
			slog.Time("next_cleanup", nextCleanup))

		if wait <= 0 {
			s.logger.Warn("fetch cycle overran its interval, starting next cycle immediately",
				slog.Duration("overrun", -wait))
			continue
		}
		if s.clock.Sleep(ctx, wait) != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}

// runFetch runs one fetch cycle detached from ctx cancellation.
func (s *Scheduler) runFetch(ctx context.Context) (err error) {
	start := s.clock.Now()
	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CycleTimeout)
	defer cancel()

	var stats *ingest.CycleStats
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fetch cycle panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrCyclePanicked, r)
		}
		if s.metrics != nil {
			s.metrics.RecordJobRun(JobFetch, err == nil, s.clock.Now().Sub(start).Seconds())
			if stats != nil {
				s.metrics.RecordArticlesIngested(stats.NewArticleCount())
			}
		}
		if s.slo != nil {
			var inserted, enrichFailed int64
			if stats != nil {
				inserted, enrichFailed = stats.NewArticleCount(), stats.EnrichErrors
			}
			s.slo.RecordCycle(err == nil, inserted, enrichFailed, s.clock.Now())
		}
	}()

	stats, err = s.fetcher.RunFetchCycle(cycleCtx, s.terms)
	if err != nil {
		return err
	}
	if m, ok := s.readiness.(fetchMarker); ok {
		m.MarkFetched(s.clock.Now())
	}
	s.logger.Info("fetch cycle finished",
		slog.String("cycle_id", stats.CycleID),
		slog.Int64("new_articles", stats.NewArticleCount()))
	return nil
}

// runCleanup runs one retention sweep. Failures are logged only.
func (s *Scheduler) runCleanup(ctx context.Context) {
	start := s.clock.Now()
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CycleTimeout)
	defer cancel()

	var err error
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("retention sweep panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrCyclePanicked, r)
		}
		if err != nil {
			s.logger.Error("retention sweep failed", slog.Any("error", err))
		}
		if s.metrics != nil {
			s.metrics.RecordJobRun(JobCleanup, err == nil, s.clock.Now().Sub(start).Seconds())
		}
	}()

	s.logger.Info("starting old article cleanup", slog.Int("retention_days", s.cfg.RetentionDays))
	stats, err := s.sweeper.Sweep(sweepCtx, s.cfg.RetentionDays)
	if err == nil && s.metrics != nil {
		s.metrics.RecordArticlesDeleted(stats.DeletedCount())
	}
}

// noteSkippedCleanup reports a cleanup that is due but skipped because the
// fetch cycle failed. Repeated fetch failures starve cleanup.
func (s *Scheduler) noteSkippedCleanup(nextCleanup time.Time) {
	now := s.clock.Now()
	if now.Before(nextCleanup) {
		return
	}
	s.logger.Warn("cleanup due but skipped after failed fetch cycle",
		slog.Duration("overdue", now.Sub(nextCleanup)))
	if s.metrics != nil {
		s.metrics.RecordCleanupSkipped()
	}
}

func (s *Scheduler) setReady(ready bool) {
	if s.readiness != nil {
		s.readiness.SetReady(ready)
	}
}
