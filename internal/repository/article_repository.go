// Package repository declares the persistence ports used by the use cases.
package repository

import (
	"context"
	"time"

	"newsintel/internal/domain/entity"
)

// ArticleRepository persists ingested articles keyed by their source URL.
//
// Uniqueness of the key is enforced by the store itself, so concurrent
// InsertIfAbsent calls for the same key yield exactly one new row.
type ArticleRepository interface {
	// InsertIfAbsent stores the fetch-time fields of a under key.
	// When the key already exists the original identity is returned with
	// wasNew=false and the stored row is left untouched.
	InsertIfAbsent(ctx context.Context, key string, a *entity.Article) (id int64, wasNew bool, err error)

	// UpdateByID writes the enrichment fields of an existing article.
	// A zero id is logged and ignored. An id that no longer exists
	// (for example, swept in between) is not an error.
	UpdateByID(ctx context.Context, id int64, e entity.Enrichment) error

	// DeleteOlderThan removes articles whose parsed publication time is
	// strictly before cutoff. Absent or unparsable timestamps never match.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteUndatedFetchedBefore removes articles without a parsed
	// publication time that were stored strictly before cutoff.
	DeleteUndatedFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ListRecent returns up to limit articles, newest fetch first.
	ListRecent(ctx context.Context, limit int) ([]*entity.Article, error)
}
