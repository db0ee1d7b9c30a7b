// Command worker runs the news ingestion scheduler: periodic fetch cycles
// over the configured search terms and a slower retention sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsintel/internal/config"
	"newsintel/internal/infra/enricher"
	"newsintel/internal/infra/fetcher"
	"newsintel/internal/infra/newsapi"
	"newsintel/internal/infra/scraper"
	"newsintel/internal/infra/store"
	workerPkg "newsintel/internal/infra/worker"
	"newsintel/internal/observability/logging"
	"newsintel/internal/observability/slo"
	pkgconfig "newsintel/internal/pkg/config"
	"newsintel/internal/usecase/ingest"
	"newsintel/internal/usecase/retention"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail-open configuration: only an unreadable scoring file is fatal.
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		return fmt.Errorf("load worker configuration: %w", err)
	}
	appMetrics := pkgconfig.NewConfigMetrics("app")
	appConfig, err := config.LoadAppConfig(appMetrics)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("worker configuration loaded",
		slog.String("fetch_schedule", workerConfig.FetchSchedule),
		slog.String("cleanup_schedule", workerConfig.CleanupSchedule),
		slog.Int("retention_days", workerConfig.RetentionDays),
		slog.Duration("cycle_timeout", workerConfig.CycleTimeout),
		slog.String("store", appConfig.StoreDriver),
		slog.Any("providers", appConfig.Providers),
		slog.String("enricher", appConfig.EnricherType),
		slog.Int("search_terms", len(appConfig.SearchTerms)))

	// A store that cannot be reached at startup is fatal.
	st, err := store.Open(ctx, appConfig.StoreDriver, appConfig.SQLitePath)
	if err != nil {
		return fmt.Errorf("open %s store: %w", appConfig.StoreDriver, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	searcher, err := buildSearcher(logger, appConfig, appMetrics)
	if err != nil {
		return err
	}

	ingestSvc := ingest.NewService(st.Repo, searcher, buildEnricher(logger, appConfig, appMetrics), ingest.Config{
		Parallelism:      appConfig.FetchParallelism,
		ExcerptThreshold: appConfig.ExcerptThreshold,
	})
	if appConfig.ExcerptFill {
		ingestSvc.WithExcerptFetcher(fetcher.NewReadabilityFetcher(fetcher.LoadConfigFromEnv(appMetrics)))
		logger.Info("excerpt fill enabled", slog.Int("threshold", appConfig.ExcerptThreshold))
	}
	retentionSvc := retention.NewService(st.Repo, retention.Config{PurgeUndated: appConfig.PurgeUndated})

	startMetricsServer(ctx, logger, appConfig.MetricsPort)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger).WithStaleAfter(workerConfig.HealthStaleAfter)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler, err := workerPkg.NewScheduler(ingestSvc, retentionSvc, appConfig.SearchTerms, *workerConfig,
		workerPkg.WithLogger(logger),
		workerPkg.WithMetrics(workerMetrics),
		workerPkg.WithReadiness(healthServer),
		workerPkg.WithSLO(slo.NewTracker(slo.DefaultWindow)))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	// Run returns only after the in-flight cycle has finished, so the store
	// is closed after the last write.
	err = scheduler.Run(ctx)
	logger.Info("worker shutdown complete")
	return err
}

// buildSearcher combines the configured providers. A provider that cannot
// be constructed is skipped with a warning; having none at all is fatal.
func buildSearcher(logger *slog.Logger, cfg *config.AppConfig, m *pkgconfig.ConfigMetrics) (ingest.Searcher, error) {
	var providers []ingest.NamedSearcher
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderNewsAPI:
			client, err := newsapi.New(newsapi.LoadConfigFromEnv(m), &http.Client{Timeout: 30 * time.Second})
			if err != nil {
				logger.Warn("newsapi provider disabled", slog.Any("error", err))
				continue
			}
			providers = append(providers, ingest.NamedSearcher{Name: name, Searcher: client})
		case config.ProviderGoogleNews:
			providers = append(providers, ingest.NamedSearcher{
				Name:     name,
				Searcher: scraper.NewGoogleNewsSearcher(scraper.LoadConfigFromEnv(m), nil),
			})
		}
	}
	if len(providers) == 0 {
		return nil, errors.New("no search provider could be configured")
	}
	return ingest.NewMultiSearcher(providers...), nil
}

// buildEnricher selects the enrichment backend. An LLM backend without its
// API key falls back to the offline glossary enricher.
func buildEnricher(logger *slog.Logger, cfg *config.AppConfig, m *pkgconfig.ConfigMetrics) ingest.Enricher {
	vocab := enricher.Vocabulary{
		TopicLabels:    cfg.Scoring.TopicLabels,
		SectorGlossary: cfg.Scoring.SectorGlossary,
	}

	switch cfg.EnricherType {
	case config.EnricherNone:
		logger.Info("enrichment disabled")
		return nil
	case config.EnricherClaude:
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return enricher.NewClaude(key, enricher.LoadConfig(enricher.DefaultClaudeModel, m), vocab)
		}
		logger.Warn("ANTHROPIC_API_KEY not set, using glossary enricher")
	case config.EnricherOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return enricher.NewOpenAI(key, enricher.LoadConfig(enricher.DefaultOpenAIModel, m), vocab)
		}
		logger.Warn("OPENAI_API_KEY not set, using glossary enricher")
	}
	return enricher.NewGlossary(vocab)
}
