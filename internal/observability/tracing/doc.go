// Package tracing provides OpenTelemetry tracing helpers.
//
// Spans are created through the global tracer provider. The worker emits
// one span per fetch cycle, one per search term and one per retention
// sweep; installing an SDK provider with an exporter makes them visible.
//
// Example usage:
//
//	ctx, span := tracing.StartSpan(ctx, "ingest.cycle", attribute.Int("terms", len(terms)))
//	defer func() { tracing.EndSpan(span, err) }()
package tracing
