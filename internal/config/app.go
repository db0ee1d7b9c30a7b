// Package config assembles the immutable application configuration that
// main builds once and hands to each component's constructor.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	pkgconfig "newsintel/internal/pkg/config"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Search providers.
const (
	ProviderNewsAPI    = "newsapi"
	ProviderGoogleNews = "googlenews"
)

// Enricher types.
const (
	EnricherClaude   = "claude"
	EnricherOpenAI   = "openai"
	EnricherGlossary = "glossary"
	EnricherNone     = "none"
)

// AppConfig is the process-wide configuration. Component-specific settings
// (worker cadence, DB pool, HTTP clients) are loaded by their own packages.
type AppConfig struct {
	// SearchTerms are queried once per fetch cycle, in order.
	SearchTerms []string

	// FetchParallelism is the number of terms processed concurrently.
	FetchParallelism int

	// PurgeUndated enables deletion of articles without a valid publication
	// time, measured by their store insert time.
	PurgeUndated bool

	// StoreDriver selects the article repository.
	StoreDriver string

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string

	// Providers lists the search backends, queried in order per term.
	Providers []string

	// EnricherType selects the enrichment backend.
	EnricherType string

	// ExcerptFill fetches the article page when a record's body is shorter
	// than ExcerptThreshold characters.
	ExcerptFill      bool
	ExcerptThreshold int

	// MetricsPort serves /metrics.
	MetricsPort int

	// Scoring holds profile defaults, weights and the classification vocabulary.
	Scoring ScoringConfig
}

// DefaultSearchTerms are queried when SEARCH_TERMS is unset.
func DefaultSearchTerms() []string {
	return []string{"business intelligence", "data analytics", "market trends", "geopolitics", "crypto"}
}

// LoadAppConfig reads the environment. Invalid scalar values fall back to
// defaults with a warning; an unreadable or invalid scoring file is an error
// because silently ignoring an operator's profile would change results.
func LoadAppConfig(m *pkgconfig.ConfigMetrics) (*AppConfig, error) {
	cfg := &AppConfig{
		SearchTerms: pkgconfig.LoadEnvStringList("SEARCH_TERMS",
			pkgconfig.LoadEnvStringList("NEWS_KEYWORDS", DefaultSearchTerms())),
		FetchParallelism: pkgconfig.LoadEnvInt("FETCH_PARALLELISM", 1, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 32)
		}).Resolve("fetch_parallelism", m),
		PurgeUndated: pkgconfig.LoadEnvBool("RETENTION_PURGE_UNDATED", false).
			Resolve("retention_purge_undated", m),
		StoreDriver: pkgconfig.LoadEnvWithFallback("STORE_DRIVER", StorePostgres,
			pkgconfig.OneOf(StorePostgres, StoreSQLite, StoreMemory)).
			Resolve("store_driver", m),
		SQLitePath: pkgconfig.LoadEnvString("SQLITE_PATH", "newsintel.db"),
		Providers:  loadProviders(m),
		EnricherType: pkgconfig.LoadEnvWithFallback("ENRICHER_TYPE", EnricherGlossary,
			pkgconfig.OneOf(EnricherClaude, EnricherOpenAI, EnricherGlossary, EnricherNone)).
			Resolve("enricher_type", m),
		ExcerptFill: pkgconfig.LoadEnvBool("EXCERPT_FILL_ENABLED", false).
			Resolve("excerpt_fill_enabled", m),
		ExcerptThreshold: pkgconfig.LoadEnvInt("EXCERPT_FILL_THRESHOLD", 200, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 0, 100000)
		}).Resolve("excerpt_fill_threshold", m),
		MetricsPort: pkgconfig.LoadEnvInt("METRICS_PORT", 9090, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1024, 65535)
		}).Resolve("metrics_port", m),
		Scoring: DefaultScoringConfig(),
	}

	if path := pkgconfig.LoadEnvString("SCORING_CONFIG_FILE", ""); path != "" {
		sc, err := LoadScoringConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Scoring = *sc
		slog.Info("scoring configuration loaded", slog.String("path", path))
	}

	if len(cfg.SearchTerms) == 0 {
		return nil, fmt.Errorf("no search terms configured")
	}
	if m != nil {
		m.RecordLoadTimestamp()
	}
	return cfg, nil
}

// loadProviders reads FETCH_PROVIDERS, dropping unknown names with a warning.
func loadProviders(m *pkgconfig.ConfigMetrics) []string {
	raw := pkgconfig.LoadEnvStringList("FETCH_PROVIDERS", []string{ProviderNewsAPI})
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(p)
		if p != ProviderNewsAPI && p != ProviderGoogleNews {
			slog.Warn("unknown search provider ignored", slog.String("provider", p))
			if m != nil {
				m.RecordValidationError("fetch_providers")
			}
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		if m != nil {
			m.RecordFallback("fetch_providers", "default")
		}
		return []string{ProviderNewsAPI}
	}
	return out
}
