// Package retention evicts stale articles from the store.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"newsintel/internal/observability/metrics"
	"newsintel/internal/observability/tracing"
	"newsintel/internal/repository"
)

// ErrInvalidRetention is returned for a negative retention period.
var ErrInvalidRetention = errors.New("retention days must not be negative")

// Policy labels recorded in metrics and logs.
const (
	PolicyDated   = "dated"
	PolicyUndated = "undated"
)

// Config selects the sweep policies.
type Config struct {
	// PurgeUndated additionally removes articles without a valid publication
	// time once their store insert time passes the cutoff. Off by default:
	// such articles are otherwise kept forever.
	PurgeUndated bool
}

// Service deletes articles older than a retention period.
type Service struct {
	Repo repository.ArticleRepository
	cfg  Config
	now  func() time.Time
}

// NewService creates a retention Service.
func NewService(repo repository.ArticleRepository, cfg Config) *Service {
	return &Service{Repo: repo, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source used to compute the cutoff.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SweepStats reports what one sweep removed.
type SweepStats struct {
	Cutoff   time.Time
	Deleted  int64 // dated articles older than Cutoff
	Undated  int64 // undated articles fetched before Cutoff, when enabled
	Duration time.Duration
}

// DeletedCount is the total number of articles removed.
func (s *SweepStats) DeletedCount() int64 {
	return s.Deleted + s.Undated
}

// Sweep deletes every article whose valid publication time is strictly
// before now minus retentionDays. Articles with an absent or unparsable
// publication time are kept unless the undated policy is enabled.
func (s *Service) Sweep(ctx context.Context, retentionDays int) (*SweepStats, error) {
	if retentionDays < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRetention, retentionDays)
	}

	start := time.Now()
	stats := &SweepStats{
		Cutoff: s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour),
	}

	ctx, span := tracing.StartSpan(ctx, "retention.Sweep",
		attribute.Int("retention_days", retentionDays),
		attribute.Bool("purge_undated", s.cfg.PurgeUndated))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	logger := slog.Default()

	stats.Deleted, err = s.Repo.DeleteOlderThan(ctx, stats.Cutoff)
	if err != nil {
		err = fmt.Errorf("delete articles older than %s: %w", stats.Cutoff.Format(time.RFC3339), err)
		return stats, err
	}
	metrics.RecordRetention(PolicyDated, stats.Deleted)

	if s.cfg.PurgeUndated {
		stats.Undated, err = s.Repo.DeleteUndatedFetchedBefore(ctx, stats.Cutoff)
		if err != nil {
			err = fmt.Errorf("delete undated articles: %w", err)
			return stats, err
		}
		metrics.RecordRetention(PolicyUndated, stats.Undated)
	}

	stats.Duration = time.Since(start)
	metrics.RecordSweepDuration(stats.Duration)
	span.SetAttributes(attribute.Int64("deleted", stats.DeletedCount()))

	logger.Info("retention sweep completed",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff", stats.Cutoff),
		slog.Int64("deleted", stats.Deleted),
		slog.Int64("deleted_undated", stats.Undated),
		slog.Bool("purge_undated", s.cfg.PurgeUndated),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}
