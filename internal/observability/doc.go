// Package observability groups the worker's observability infrastructure:
// structured logging, Prometheus metrics and OpenTelemetry tracing.
//
// Subpackages:
//   - logging: slog JSON logger and contextual field helpers
//   - metrics: Prometheus metrics registry and recorders
//   - tracing: OpenTelemetry tracer used for cycle and sweep spans
//   - slo: cycle success, freshness and enrichment coverage gauges
package observability
