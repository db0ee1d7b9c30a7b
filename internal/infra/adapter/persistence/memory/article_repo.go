// Package memory provides an in-process implementation of the article repository.
// It is used for local runs without a database and as the reference store in tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"newsintel/internal/domain/entity"
	"newsintel/internal/repository"
)

// ArticleRepo keeps articles in a map guarded by a mutex.
// The mutex plays the role of the unique index of a real store.
type ArticleRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*entity.Article
	byKey  map[string]int64
	now    func() time.Time
}

// NewArticleRepo creates an empty in-memory repository.
func NewArticleRepo() *ArticleRepo {
	return &ArticleRepo{
		byID:  make(map[int64]*entity.Article),
		byKey: make(map[string]int64),
		now:   time.Now,
	}
}

var _ repository.ArticleRepository = (*ArticleRepo)(nil)

// WithClock overrides the clock used to stamp FetchedAt and EnrichedAt.
func (r *ArticleRepo) WithClock(now func() time.Time) *ArticleRepo {
	r.now = now
	return r
}

func (r *ArticleRepo) InsertIfAbsent(ctx context.Context, key string, a *entity.Article) (int64, bool, error) {
	if strings.TrimSpace(key) == "" {
		return 0, false, fmt.Errorf("InsertIfAbsent: %w: empty key", entity.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return id, false, nil
	}

	r.nextID++
	stored := fetchFields(a)
	stored.ID = r.nextID
	stored.Key = key
	if stored.FetchedAt.IsZero() {
		stored.FetchedAt = r.now()
	}

	r.byID[stored.ID] = stored
	r.byKey[key] = stored.ID
	return stored.ID, true, nil
}

func (r *ArticleRepo) UpdateByID(ctx context.Context, id int64, e entity.Enrichment) error {
	if id == 0 {
		slog.Warn("enrichment update skipped: article has no identity")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("UpdateByID: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		slog.Warn("enrichment update matched no article", slog.Int64("article_id", id))
		return nil
	}
	e.Sectors = append([]string(nil), e.Sectors...)
	e.Scores = copyScores(e.Scores)
	e.Apply(a, r.now())
	return nil
}

func (r *ArticleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(a *entity.Article) bool {
		return a.PublishedAt.Before(cutoff)
	})
}

func (r *ArticleRepo) DeleteUndatedFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(a *entity.Article) bool {
		return !a.PublishedAt.Valid() && a.FetchedAt.Before(cutoff)
	})
}

func (r *ArticleRepo) deleteWhere(ctx context.Context, match func(*entity.Article) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.byID {
		if match(a) {
			delete(r.byID, id)
			delete(r.byKey, a.Key)
			n++
		}
	}
	return n, nil
}

func (r *ArticleRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	if limit <= 0 {
		return []*entity.Article{}, nil
	}

	r.mu.Lock()
	out := make([]*entity.Article, 0, len(r.byID))
	for _, a := range r.byID {
		c := *a
		c.Scores = copyScores(a.Scores)
		c.Sectors = append([]string(nil), a.Sectors...)
		out = append(out, &c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FetchedAt.Equal(out[j].FetchedAt) {
			return out[i].FetchedAt.After(out[j].FetchedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored articles.
func (r *ArticleRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// fetchFields copies only the fields written at fetch time.
func fetchFields(a *entity.Article) *entity.Article {
	return &entity.Article{
		SourceID:    a.SourceID,
		SourceName:  a.SourceName,
		Author:      a.Author,
		Title:       a.Title,
		Summary:     a.Summary,
		BodyExcerpt: a.BodyExcerpt,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt,
		FetchedAt:   a.FetchedAt,
	}
}

func copyScores(s entity.Scores) entity.Scores {
	if s == nil {
		return nil
	}
	out := make(entity.Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
