package enricher

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	providerClaude   = "claude"
	providerOpenAI   = "openai"
	providerGlossary = "glossary"
)

// MetricsRecorder records enrichment API behaviour per provider.
type MetricsRecorder interface {
	// RecordCall records one API request and whether it failed.
	RecordCall(provider string, duration time.Duration, err error)

	// RecordInvalidResponse counts replies that could not be parsed.
	RecordInvalidResponse(provider string)

	// RecordClamped counts scores that were outside [0, 1].
	RecordClamped(provider string, n int)
}

// PrometheusMetrics implements MetricsRecorder.
type PrometheusMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	invalid  *prometheus.CounterVec
	clamped  *prometheus.CounterVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// registerOrExisting registers c, returning the already registered collector
// when an identical one exists.
func registerOrExisting[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// NewPrometheusMetrics returns the process-wide recorder. It is created once
// so that several enrichers can share the default registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			calls: registerOrExisting(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "enrichment_api_requests_total",
				Help: "Total number of enrichment API requests by provider and status",
			}, []string{"provider", "status"})),
			duration: registerOrExisting(prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "enrichment_api_duration_seconds",
				Help:    "Latency of enrichment API requests",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			}, []string{"provider"})),
			invalid: registerOrExisting(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "enrichment_invalid_responses_total",
				Help: "Total number of enrichment replies without a usable JSON object",
			}, []string{"provider"})),
			clamped: registerOrExisting(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "enrichment_scores_clamped_total",
				Help: "Total number of scores clamped into [0, 1]",
			}, []string{"provider"})),
		}
	})
	return prometheusMetricsInstance
}

// RecordCall implements MetricsRecorder.
func (p *PrometheusMetrics) RecordCall(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.calls.WithLabelValues(provider, status).Inc()
	p.duration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordInvalidResponse implements MetricsRecorder.
func (p *PrometheusMetrics) RecordInvalidResponse(provider string) {
	p.invalid.WithLabelValues(provider).Inc()
}

// RecordClamped implements MetricsRecorder.
func (p *PrometheusMetrics) RecordClamped(provider string, n int) {
	if n > 0 {
		p.clamped.WithLabelValues(provider).Add(float64(n))
	}
}
