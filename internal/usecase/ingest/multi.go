package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// NamedSearcher is a Searcher labelled for logs and errors.
type NamedSearcher struct {
	Name     string
	Searcher Searcher
}

// MultiSearcher queries several providers in order and concatenates their
// records. Duplicate URLs across providers are left to the store's
// key-based deduplication, so the first provider to return a URL wins.
type MultiSearcher struct {
	providers []NamedSearcher
}

// NewMultiSearcher combines providers in the given order.
func NewMultiSearcher(providers ...NamedSearcher) *MultiSearcher {
	return &MultiSearcher{providers: providers}
}

// Search fails only when every provider failed; partial failures are logged.
func (m *MultiSearcher) Search(ctx context.Context, term string) ([]json.RawMessage, error) {
	var (
		out  []json.RawMessage
		errs []error
	)
	for _, p := range m.providers {
		records, err := p.Searcher.Search(ctx, term)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			slog.Warn("search provider failed",
				slog.String("provider", p.Name),
				slog.String("term", term),
				slog.Any("error", err))
			continue
		}
		out = append(out, records...)
	}
	if len(m.providers) > 0 && len(errs) == len(m.providers) {
		return nil, errors.Join(errs...)
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}
