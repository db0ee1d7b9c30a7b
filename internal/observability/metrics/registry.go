// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for IngestRecordsTotal.
const (
	OutcomeInserted   = "inserted"
	OutcomeDuplicated = "duplicated"
	OutcomeSkipped    = "skipped"
	OutcomeMalformed  = "malformed"
)

// Stage labels for IngestErrorsTotal.
const (
	StageSearch = "search"
	StageEnrich = "enrich"
	StageStore  = "store"
)

// Ingestion metrics
var (
	// IngestCyclesTotal counts fetch cycles by status (success, failure)
	IngestCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total number of fetch cycles",
		},
		[]string{"status"},
	)

	// IngestCycleDuration measures the duration of one fetch cycle
	IngestCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Time taken by one fetch cycle",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	// IngestRecordsTotal counts raw records by what happened to them
	IngestRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Total number of raw search records processed, by outcome",
		},
		[]string{"outcome"},
	)

	// IngestErrorsTotal counts per-item failures by pipeline stage
	IngestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingestion failures, by stage",
		},
		[]string{"stage"},
	)

	// SearchResultsTotal counts records returned per search term
	SearchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_results_total",
			Help: "Total number of records returned by the search adapter",
		},
		[]string{"term"},
	)

	// EnrichmentsTotal counts enrichment calls by status
	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichments_total",
			Help: "Total number of article enrichments",
		},
		[]string{"status"},
	)

	// EnrichmentDuration measures time to enrich one article
	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrichment_duration_seconds",
			Help:    "Time taken to enrich an article",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// Retention metrics
var (
	// RetentionDeletedTotal counts evicted articles by policy (dated, undated)
	RetentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_deleted_total",
			Help: "Total number of articles removed by the retention sweeper",
		},
		[]string{"policy"},
	)

	// RetentionSweepDuration measures one retention sweep
	RetentionSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retention_sweep_duration_seconds",
			Help:    "Time taken by one retention sweep",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

// Content fetch metrics track the optional full-text excerpt fill
var (
	// ContentFetchAttemptsTotal counts content fetch attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// ContentFetchDuration measures time to fetch article content
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures fetched content size in characters
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_size_bytes",
			Help:    "Fetched article content size",
			Buckets: prometheus.ExponentialBuckets(100, 2, 14),
		},
	)
)
