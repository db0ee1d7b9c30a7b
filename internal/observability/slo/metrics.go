// Package slo tracks the worker's service level objectives: fetch cycle
// success, data freshness and enrichment coverage.
package slo

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the ingestion pipeline.
const (
	// CycleSuccessSLO is the target share of fetch cycles that complete.
	CycleSuccessSLO = 0.99

	// FreshnessSLO is the maximum age in seconds of the newest successful fetch.
	FreshnessSLO = 1800.0

	// EnrichmentCoverageSLO is the target share of new articles that get enriched.
	EnrichmentCoverageSLO = 0.95
)

// DefaultWindow is the number of recent cycles the ratios are computed over.
const DefaultWindow = 100

// SLO tracking metrics
var (
	// SLOCycleSuccess tracks the share of successful cycles in the window (0-1)
	SLOCycleSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_cycle_success_ratio",
			Help: "Share of successful fetch cycles over the recent window, target: 0.99",
		},
	)

	// SLOFreshness tracks seconds since the last successful fetch cycle
	SLOFreshness = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_data_freshness_seconds",
			Help: "Seconds since the last successful fetch cycle, target: <= 1800",
		},
	)

	// SLOEnrichmentCoverage tracks the share of new articles enriched (0-1)
	SLOEnrichmentCoverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_enrichment_coverage_ratio",
			Help: "Share of newly stored articles that were enriched over the recent window, target: 0.95",
		},
	)
)

type cycleResult struct {
	success  bool
	inserted int64
	failed   int64
}

// Tracker keeps a ring of recent cycle results and publishes the SLO gauges.
// It is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	window      []cycleResult
	next        int
	filled      bool
	lastSuccess time.Time
}

// NewTracker creates a tracker over the last size cycles.
func NewTracker(size int) *Tracker {
	if size < 1 {
		size = DefaultWindow
	}
	return &Tracker{window: make([]cycleResult, size)}
}

// RecordCycle records one fetch cycle: whether it completed, how many new
// articles it stored and how many of those failed enrichment.
func (t *Tracker) RecordCycle(success bool, inserted, enrichFailed int64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.window[t.next] = cycleResult{success: success, inserted: inserted, failed: enrichFailed}
	t.next = (t.next + 1) % len(t.window)
	if t.next == 0 {
		t.filled = true
	}
	if success {
		t.lastSuccess = at
	}

	UpdateCycleSuccess(t.successRatio())
	UpdateEnrichmentCoverage(t.coverage())
	t.refreshFreshness(at)
}

// RefreshFreshness recomputes the freshness gauge at now.
func (t *Tracker) RefreshFreshness(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshFreshness(now)
}

func (t *Tracker) refreshFreshness(now time.Time) {
	if t.lastSuccess.IsZero() {
		return
	}
	UpdateFreshness(now.Sub(t.lastSuccess).Seconds())
}

func (t *Tracker) recent() []cycleResult {
	if t.filled {
		return t.window
	}
	return t.window[:t.next]
}

func (t *Tracker) successRatio() float64 {
	results := t.recent()
	if len(results) == 0 {
		return 1
	}
	ok := 0
	for _, r := range results {
		if r.success {
			ok++
		}
	}
	return float64(ok) / float64(len(results))
}

func (t *Tracker) coverage() float64 {
	var inserted, failed int64
	for _, r := range t.recent() {
		inserted += r.inserted
		failed += r.failed
	}
	if inserted == 0 {
		return 1
	}
	return float64(inserted-failed) / float64(inserted)
}

// UpdateCycleSuccess sets the cycle success gauge.
func UpdateCycleSuccess(ratio float64) {
	SLOCycleSuccess.Set(ratio)
}

// UpdateFreshness sets the freshness gauge.
func UpdateFreshness(seconds float64) {
	SLOFreshness.Set(seconds)
}

// UpdateEnrichmentCoverage sets the enrichment coverage gauge.
func UpdateEnrichmentCoverage(ratio float64) {
	SLOEnrichmentCoverage.Set(ratio)
}
