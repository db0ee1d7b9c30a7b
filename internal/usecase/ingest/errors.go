// Package ingest implements the fetch cycle: search, normalize, deduplicate,
// store, enrich. Per-item failures are logged and counted, never returned;
// callers only see the cycle statistics.
package ingest

import "errors"

// Sentinel errors for ingest use case operations.
var (
	// ErrMalformedRecord indicates a raw search record that is not a JSON
	// object of the expected shape.
	ErrMalformedRecord = errors.New("malformed search record")

	// ErrTermPanicked indicates that processing of a search term panicked.
	// The panic is recovered and the rest of the cycle still runs.
	ErrTermPanicked = errors.New("search term processing panicked")
)
