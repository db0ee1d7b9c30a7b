package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsintel/internal/domain/entity"
	"newsintel/internal/infra/adapter/persistence/memory"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time { return func() time.Time { return base } }

/* ─────────────────────────── InsertIfAbsent ─────────────────────────── */

func TestInsertIfAbsent_DuplicateReturnsOriginalIdentity(t *testing.T) {
	repo := memory.NewArticleRepo().WithClock(fixedClock())
	ctx := context.Background()

	id1, isNew1, err := repo.InsertIfAbsent(ctx, "https://x/a", &entity.Article{Title: "first"})
	require.NoError(t, err)
	assert.True(t, isNew1)

	id2, isNew2, err := repo.InsertIfAbsent(ctx, "https://x/a", &entity.Article{Title: "second"})
	require.NoError(t, err)
	assert.False(t, isNew2)
	assert.Equal(t, id1, id2)

	got, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Title, "duplicate insert must not overwrite")
}

func TestInsertIfAbsent_EmptyKey(t *testing.T) {
	repo := memory.NewArticleRepo()
	_, _, err := repo.InsertIfAbsent(context.Background(), "  ", &entity.Article{Title: "t"})
	require.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestInsertIfAbsent_IgnoresEnrichmentFields(t *testing.T) {
	repo := memory.NewArticleRepo().WithClock(fixedClock())
	ctx := context.Background()

	_, _, err := repo.InsertIfAbsent(ctx, "https://x/a", &entity.Article{
		Title:  "t",
		Scores: entity.Scores{entity.SignalUrgency: 1},
		Topic:  "AI",
	})
	require.NoError(t, err)

	got, _ := repo.ListRecent(ctx, 1)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Scores)
	assert.Empty(t, got[0].Topic)
	assert.False(t, got[0].Enriched())
	assert.Equal(t, base, got[0].FetchedAt)
}

func TestInsertIfAbsent_ConcurrentSameKey(t *testing.T) {
	repo := memory.NewArticleRepo()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[int64]struct{}{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, isNew, err := repo.InsertIfAbsent(ctx, "https://x/same", &entity.Article{Title: "t"})
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[id] = struct{}{}
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, repo.Len())
}

/* ─────────────────────────── UpdateByID ─────────────────────────── */

func TestUpdateByID(t *testing.T) {
	repo := memory.NewArticleRepo().WithClock(fixedClock())
	ctx := context.Background()

	id, _, err := repo.InsertIfAbsent(ctx, "https://x/a", &entity.Article{Title: "t"})
	require.NoError(t, err)

	err = repo.UpdateByID(ctx, id, entity.Enrichment{
		Scores:        entity.Scores{entity.SignalUrgency: 0.8},
		Topic:         "AI",
		Sectors:       []string{"cloud"},
		Sentiment:     entity.SentimentPositive,
		UrgencyBucket: entity.BucketHigh,
	})
	require.NoError(t, err)

	got, _ := repo.ListRecent(ctx, 1)
	require.Len(t, got, 1)
	assert.True(t, got[0].Enriched())
	assert.Equal(t, "AI", got[0].Topic)
	assert.Equal(t, entity.BucketHigh, got[0].UrgencyBucket)
	assert.InDelta(t, 0.8, got[0].Scores.Get(entity.SignalUrgency), 1e-9)
}

func TestUpdateByID_ZeroAndUnknownAreNoOps(t *testing.T) {
	repo := memory.NewArticleRepo()
	ctx := context.Background()

	require.NoError(t, repo.UpdateByID(ctx, 0, entity.Enrichment{Topic: "x"}))
	require.NoError(t, repo.UpdateByID(ctx, 42, entity.Enrichment{Topic: "x"}))
	assert.Equal(t, 0, repo.Len())
}

/* ─────────────────────────── Deletes ─────────────────────────── */

func TestDeleteOlderThan_SkipsUndatedAndUnparsable(t *testing.T) {
	repo := memory.NewArticleRepo().WithClock(fixedClock())
	ctx := context.Background()
	cutoff := base.AddDate(0, 0, -30)

	seed := []struct {
		key string
		ts  entity.Timestamp
	}{
		{"https://x/old", entity.ParsedTimestamp(base.AddDate(0, 0, -31), "")},
		{"https://x/fresh", entity.ParsedTimestamp(base.AddDate(0, 0, -1), "")},
		{"https://x/exact", entity.ParsedTimestamp(cutoff, "")},
		{"https://x/garbage", entity.UnparsedTimestamp("not a date")},
		{"https://x/absent", entity.Timestamp{}},
	}
	for _, s := range seed {
		_, _, err := repo.InsertIfAbsent(ctx, s.key, &entity.Article{Title: s.key, PublishedAt: s.ts})
		require.NoError(t, err)
	}

	n, err := repo.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 4, repo.Len())

	// A second sweep with the same cutoff removes nothing.
	n, err = repo.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteUndatedFetchedBefore(t *testing.T) {
	now := base
	repo := memory.NewArticleRepo().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _, _ = repo.InsertIfAbsent(ctx, "https://x/undated-old", &entity.Article{Title: "a"})
	_, _, _ = repo.InsertIfAbsent(ctx, "https://x/dated-old", &entity.Article{
		Title:       "b",
		PublishedAt: entity.ParsedTimestamp(base, ""),
	})
	now = base.AddDate(0, 0, 40)
	_, _, _ = repo.InsertIfAbsent(ctx, "https://x/undated-new", &entity.Article{Title: "c"})

	n, err := repo.DeleteUndatedFetchedBefore(ctx, base.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, repo.Len())
}

/* ─────────────────────────── ListRecent ─────────────────────────── */

func TestListRecent_NewestFirstAndLimit(t *testing.T) {
	now := base
	repo := memory.NewArticleRepo().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		now = base.Add(time.Duration(i) * time.Minute)
		_, _, err := repo.InsertIfAbsent(ctx, fmt.Sprintf("https://x/%d", i), &entity.Article{Title: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	got, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"4", "3", "2"}, []string{got[0].Title, got[1].Title, got[2].Title})

	none, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
