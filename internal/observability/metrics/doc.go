// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the worker's metrics:
//   - Ingestion metrics (cycles, per-record outcomes, per-stage errors)
//   - Enrichment metrics (count and latency)
//   - Retention metrics (articles removed per policy)
//   - Content fetch metrics for the optional excerpt fill
//
// All metrics are registered with the Prometheus default registry and
// exposed by the worker's /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	stats, err := svc.RunFetchCycle(ctx, terms)
//	metrics.RecordCycle(time.Since(start), err == nil)
package metrics
