package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"newsintel/internal/domain/entity"
	"newsintel/internal/observability/logging"
	"newsintel/internal/observability/metrics"
	"newsintel/internal/observability/tracing"
	"newsintel/internal/repository"
	"newsintel/internal/usecase/scoring"
	"newsintel/internal/utils/text"
)

// Searcher returns the raw records matching one search term.
// A nil or empty slice with a nil error means "no results".
type Searcher interface {
	Search(ctx context.Context, term string) ([]json.RawMessage, error)
}

// Enricher derives scores and labels for a stored article.
// Implementations must be idempotent for the same article.
type Enricher interface {
	Enrich(ctx context.Context, a *entity.Article) (entity.Enrichment, error)
}

// ExcerptFetcher loads the readable text of an article page.
type ExcerptFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Config controls how a fetch cycle fans out.
type Config struct {
	// Parallelism is the number of search terms processed concurrently.
	// Values below 1 mean sequential processing.
	Parallelism int
	// ExcerptThreshold is the excerpt length in characters below which the
	// article page is fetched for the enricher. Only used with WithExcerptFetcher.
	ExcerptThreshold int
}

// Service runs fetch cycles against a repository.
type Service struct {
	Repo     repository.ArticleRepository
	Searcher Searcher
	Enricher Enricher // nil disables enrichment
	Excerpts ExcerptFetcher
	cfg      Config
}

// NewService creates a new ingest Service. enricher may be nil.
func NewService(repo repository.ArticleRepository, searcher Searcher, enricher Enricher, cfg Config) *Service {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Service{
		Repo:     repo,
		Searcher: searcher,
		Enricher: enricher,
		cfg:      cfg,
	}
}

// WithExcerptFetcher enables the excerpt fill: short excerpts are replaced
// by the fetched page text in the enricher input. The stored article keeps
// the provider excerpt.
func (s *Service) WithExcerptFetcher(f ExcerptFetcher) *Service {
	s.Excerpts = f
	return s
}

// CycleStats contains statistics about one fetch cycle.
// Counters are updated atomically while terms run in parallel.
type CycleStats struct {
	CycleID      string
	Terms        int
	Records      int64
	Inserted     int64
	Duplicated   int64
	Skipped      int64
	Malformed    int64
	SearchErrors int64
	EnrichErrors int64
	StoreErrors  int64
	Duration     time.Duration
}

// NewArticleCount is the number of articles stored for the first time.
func (s *CycleStats) NewArticleCount() int64 {
	return atomic.LoadInt64(&s.Inserted)
}

// RunFetchCycle searches every term, stores previously unseen articles and
// enriches them. Search, decode, store and enrichment failures only affect
// the item they happen on; they are logged and counted in the returned stats.
//
// The returned error is non-nil only when ctx ends before all terms were
// processed or a term panicked. Stats are returned in every case.
func (s *Service) RunFetchCycle(ctx context.Context, terms []string) (*CycleStats, error) {
	stats := &CycleStats{Terms: len(terms)}
	if len(terms) == 0 {
		return stats, nil
	}

	stats.CycleID = uuid.NewString()
	ctx = logging.ContextWithCycleID(ctx, stats.CycleID)
	logger := logging.WithCycleID(ctx, slog.Default())

	ctx, span := tracing.StartSpan(ctx, "ingest.RunFetchCycle",
		attribute.String("cycle_id", stats.CycleID),
		attribute.Int("terms", len(terms)),
		attribute.Int("parallelism", s.cfg.Parallelism))
	start := time.Now()

	logger.Info("fetch cycle started",
		slog.Int("terms", len(terms)),
		slog.Int("parallelism", s.cfg.Parallelism))

	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for _, term := range terms {
		term := term
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic while processing search term",
						slog.String("term", term),
						slog.Any("panic", r))
					err = fmt.Errorf("%w: term %q: %v", ErrTermPanicked, term, r)
				}
			}()
			return s.processTerm(ctx, logger, term, stats)
		})
	}
	err := g.Wait()

	stats.Duration = time.Since(start)
	metrics.RecordCycle(stats.Duration, err == nil)
	span.SetAttributes(
		attribute.Int64("inserted", stats.Inserted),
		attribute.Int64("duplicated", stats.Duplicated))
	tracing.EndSpan(span, err)

	attrs := []any{
		slog.Int("terms", stats.Terms),
		slog.Int64("records", stats.Records),
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("duplicated", stats.Duplicated),
		slog.Int64("skipped", stats.Skipped),
		slog.Int64("malformed", stats.Malformed),
		slog.Int64("search_errors", stats.SearchErrors),
		slog.Int64("enrich_errors", stats.EnrichErrors),
		slog.Int64("store_errors", stats.StoreErrors),
		slog.Duration("duration", stats.Duration),
	}
	if err != nil {
		logger.Warn("fetch cycle ended early", append(attrs, slog.Any("error", err))...)
		return stats, fmt.Errorf("run fetch cycle: %w", err)
	}
	logger.Info("fetch cycle completed", attrs...)
	return stats, nil
}

// processTerm handles one search term. It returns an error only when ctx is
// done; adapter and per-record failures are absorbed.
func (s *Service) processTerm(ctx context.Context, logger *slog.Logger, term string, stats *CycleStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(ctx, "ingest.processTerm", attribute.String("term", term))
	defer span.End()

	records, err := s.Searcher.Search(ctx, term)
	if err != nil {
		atomic.AddInt64(&stats.SearchErrors, 1)
		metrics.RecordIngestError(metrics.StageSearch)
		span.RecordError(err)
		logger.Warn("search failed, skipping term",
			slog.String("term", term),
			slog.Any("error", err))
		return nil
	}
	metrics.RecordSearchResults(term, len(records))

	if len(records) == 0 {
		logger.Info("search returned no results", slog.String("term", term))
		return nil
	}

	for _, raw := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		atomic.AddInt64(&stats.Records, 1)
		s.processRecord(ctx, logger, term, raw, stats)
	}

	logger.Debug("search term processed",
		slog.String("term", term),
		slog.Int("records", len(records)))
	return nil
}

// processRecord stores and enriches one record. A panic in the store or
// the enricher is recovered here so it only costs this record.
func (s *Service) processRecord(ctx context.Context, logger *slog.Logger, term string, raw json.RawMessage, stats *CycleStats) {
	stage := metrics.StageStore
	defer func() {
		if r := recover(); r != nil {
			if stage == metrics.StageEnrich {
				atomic.AddInt64(&stats.EnrichErrors, 1)
			} else {
				atomic.AddInt64(&stats.StoreErrors, 1)
			}
			metrics.RecordIngestError(stage)
			logger.Error("panic while processing record",
				slog.String("term", term),
				slog.String("stage", stage),
				slog.Any("panic", r))
		}
	}()

	rec, err := DecodeRaw(raw)
	if err != nil {
		atomic.AddInt64(&stats.Malformed, 1)
		metrics.RecordRecord(metrics.OutcomeMalformed)
		logger.Warn("malformed search record skipped",
			slog.String("term", term),
			slog.Any("error", err))
		return
	}

	art := Normalize(rec)
	if !Storable(art) {
		atomic.AddInt64(&stats.Skipped, 1)
		metrics.RecordRecord(metrics.OutcomeSkipped)
		logger.Debug("record without title or url skipped",
			slog.String("term", term),
			slog.String("url", art.Key))
		return
	}
	if art.PublishedAt.Present() && !art.PublishedAt.Valid() {
		logger.Warn("unparsable publishedAt preserved as raw text",
			slog.String("url", art.Key),
			slog.String("published_at", art.PublishedAt.Raw))
	}

	id, wasNew, err := s.Repo.InsertIfAbsent(ctx, art.Key, &art)
	if err != nil {
		atomic.AddInt64(&stats.StoreErrors, 1)
		metrics.RecordIngestError(metrics.StageStore)
		logger.Warn("failed to store article",
			slog.String("url", art.Key),
			slog.Any("error", err))
		return
	}
	if !wasNew {
		atomic.AddInt64(&stats.Duplicated, 1)
		metrics.RecordRecord(metrics.OutcomeDuplicated)
		return
	}
	atomic.AddInt64(&stats.Inserted, 1)
	metrics.RecordRecord(metrics.OutcomeInserted)
	art.ID = id

	stage = metrics.StageEnrich
	s.enrich(ctx, logger, &art, stats)
}

// enrich runs the enrichment step for a freshly inserted article and stores
// the result. A failure leaves the article stored without enrichment.
func (s *Service) enrich(ctx context.Context, logger *slog.Logger, art *entity.Article, stats *CycleStats) {
	if s.Enricher == nil {
		return
	}

	input := s.enrichmentInput(ctx, logger, art)

	start := time.Now()
	e, err := s.Enricher.Enrich(ctx, input)
	metrics.RecordEnrichment(err == nil, time.Since(start))
	if err != nil {
		atomic.AddInt64(&stats.EnrichErrors, 1)
		metrics.RecordIngestError(metrics.StageEnrich)
		logger.Warn("enrichment failed, article stored without scores",
			slog.Int64("article_id", art.ID),
			slog.String("url", art.Key),
			slog.Any("error", err))
		return
	}

	if e.UrgencyBucket == "" {
		e.UrgencyBucket = scoring.Bucket(e.Scores.Get(entity.SignalUrgency))
	}

	if err := s.Repo.UpdateByID(ctx, art.ID, e); err != nil {
		atomic.AddInt64(&stats.StoreErrors, 1)
		metrics.RecordIngestError(metrics.StageStore)
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelInfo
		}
		logger.Log(ctx, level, "failed to store enrichment",
			slog.Int64("article_id", art.ID),
			slog.String("url", art.Key),
			slog.Any("error", err))
	}
}

// enrichmentInput returns art, or a copy carrying the page text when the
// excerpt is shorter than the threshold and the page could be fetched.
func (s *Service) enrichmentInput(ctx context.Context, logger *slog.Logger, art *entity.Article) *entity.Article {
	if s.Excerpts == nil {
		return art
	}
	if text.CountRunes(art.BodyExcerpt) >= s.cfg.ExcerptThreshold {
		metrics.RecordContentFetchSkipped()
		return art
	}

	start := time.Now()
	content, err := s.Excerpts.FetchContent(ctx, art.Key)
	if err != nil {
		metrics.RecordContentFetchFailed(time.Since(start))
		logger.Debug("excerpt fill failed, enriching with provider excerpt",
			slog.String("url", art.Key),
			slog.Any("error", err))
		return art
	}
	metrics.RecordContentFetchSuccess(time.Since(start), len(content))
	if text.CountRunes(content) <= text.CountRunes(art.BodyExcerpt) {
		return art
	}

	filled := *art
	filled.BodyExcerpt = content
	return &filled
}
