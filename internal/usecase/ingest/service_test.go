package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsintel/internal/domain/entity"
	"newsintel/internal/infra/adapter/persistence/memory"
	"newsintel/internal/usecase/ingest"
	"newsintel/tests/fixtures"
)

/* ───────── stubs ───────── */

type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]json.RawMessage
	errs    map[string]error
	panics  map[string]bool
	calls   []string
}

func (s *stubSearcher) Search(_ context.Context, term string) ([]json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, term)
	s.mu.Unlock()

	if s.panics[term] {
		panic("search exploded")
	}
	if err := s.errs[term]; err != nil {
		return nil, err
	}
	return s.results[term], nil
}

type stubEnricher struct {
	failKeys  map[string]bool
	panicKeys map[string]bool
	calls     int32
}

func (e *stubEnricher) Enrich(_ context.Context, a *entity.Article) (entity.Enrichment, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.panicKeys[a.Key] {
		panic("nil pointer in model client")
	}
	if e.failKeys[a.Key] {
		return entity.Enrichment{}, errors.New("model unavailable")
	}
	return entity.Enrichment{
		Scores: entity.Scores{
			entity.SignalRelevance:  0.8,
			entity.SignalImportance: 0.7,
			entity.SignalUrgency:    0.9,
		},
		Topic:     "AI",
		Sectors:   []string{"saas"},
		Sentiment: entity.SentimentPositive,
	}, nil
}

// failingUpdateRepo wraps the memory repo and fails every UpdateByID.
type failingUpdateRepo struct {
	*memory.ArticleRepo
}

func (r failingUpdateRepo) UpdateByID(context.Context, int64, entity.Enrichment) error {
	return errors.New("connection reset")
}

// failingInsertRepo fails inserts for the listed keys.
type failingInsertRepo struct {
	*memory.ArticleRepo
	failKeys map[string]bool
}

func (r failingInsertRepo) InsertIfAbsent(ctx context.Context, key string, a *entity.Article) (int64, bool, error) {
	if r.failKeys[key] {
		return 0, false, errors.New("insert failed")
	}
	return r.ArticleRepo.InsertIfAbsent(ctx, key, a)
}

// panickingInsertRepo panics on insert for the listed keys.
type panickingInsertRepo struct {
	*memory.ArticleRepo
	panicKeys map[string]bool
}

func (r panickingInsertRepo) InsertIfAbsent(ctx context.Context, key string, a *entity.Article) (int64, bool, error) {
	if r.panicKeys[key] {
		panic("driver bug")
	}
	return r.ArticleRepo.InsertIfAbsent(ctx, key, a)
}

func byKey(t *testing.T, repo *memory.ArticleRepo) map[string]*entity.Article {
	t.Helper()
	all, err := repo.ListRecent(context.Background(), 1000)
	require.NoError(t, err)
	out := make(map[string]*entity.Article, len(all))
	for _, a := range all {
		out[a.Key] = a
	}
	return out
}

/* ───────── tests ───────── */

func TestRunFetchCycle_EmptyTerms(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{}
	svc := ingest.NewService(repo, searcher, &stubEnricher{}, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.NewArticleCount())
	assert.Empty(t, searcher.calls)
	assert.Equal(t, 0, repo.Len())
}

func TestRunFetchCycle_InsertsAndEnriches(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"crypto": {fixtures.RawRecord(1, nil), fixtures.RawRecord(2, nil)},
	}}
	enricher := &stubEnricher{}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"crypto"})
	require.NoError(t, err)

	assert.NotEmpty(t, stats.CycleID)
	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(2), stats.NewArticleCount())
	assert.Equal(t, int32(2), enricher.calls)

	stored := byKey(t, repo)
	require.Len(t, stored, 2)
	a := stored["https://news.example.com/articles/1"]
	require.NotNil(t, a)
	assert.True(t, a.Enriched())
	assert.Equal(t, "AI", a.Topic)
	assert.Equal(t, entity.BucketHigh, a.UrgencyBucket, "bucket derived from urgency score")
	assert.Equal(t, "Headline 1", a.Title)
}

func TestRunFetchCycle_DuplicateNotReEnriched(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"ai":     {fixtures.RawRecord(1, nil)},
		"crypto": {fixtures.RawRecord(1, nil), fixtures.RawRecord(2, nil)},
	}}
	enricher := &stubEnricher{}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"ai", "crypto"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Inserted)
	assert.Equal(t, int64(1), stats.Duplicated)
	assert.Equal(t, int32(2), enricher.calls)

	// A second cycle sees only duplicates.
	stats, err = svc.RunFetchCycle(context.Background(), []string{"ai", "crypto"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.NewArticleCount())
	assert.Equal(t, int64(3), stats.Duplicated)
	assert.Equal(t, 2, repo.Len())
}

func TestRunFetchCycle_SkipsRecordsWithoutKeyOrTitle(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"t": {
			fixtures.WithoutField(1, "url"),
			fixtures.RawRecord(2, map[string]any{"title": nil}),
			fixtures.RawRecord(3, map[string]any{"url": "   "}),
			fixtures.RawRecord(4, nil),
		},
	}}
	svc := ingest.NewService(repo, searcher, &stubEnricher{}, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Skipped)
	assert.Equal(t, int64(1), stats.NewArticleCount())
	assert.Equal(t, 1, repo.Len())
}

func TestRunFetchCycle_MalformedRecordsCountedSeparately(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"t": {
			json.RawMessage(`[1,2,3]`),
			json.RawMessage(`"just a string"`),
			json.RawMessage(`{"title": 5}`),
			fixtures.RawRecord(1, nil),
		},
	}}
	svc := ingest.NewService(repo, searcher, &stubEnricher{}, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Malformed)
	assert.Equal(t, int64(0), stats.Skipped)
	assert.Equal(t, int64(1), stats.NewArticleCount())
}

func TestRunFetchCycle_SearchErrorSkipsTerm(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{
		results: map[string][]json.RawMessage{"ok": {fixtures.RawRecord(1, nil)}},
		errs:    map[string]error{"broken": errors.New("timeout")},
	}
	svc := ingest.NewService(repo, searcher, &stubEnricher{}, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"broken", "ok", "empty"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(1), stats.NewArticleCount())
	assert.ElementsMatch(t, []string{"broken", "ok", "empty"}, searcher.calls)
}

func TestRunFetchCycle_SequentialTermOrder(t *testing.T) {
	searcher := &stubSearcher{}
	svc := ingest.NewService(memory.NewArticleRepo(), searcher, nil, ingest.Config{Parallelism: 1})

	terms := []string{"a", "b", "c", "d"}
	_, err := svc.RunFetchCycle(context.Background(), terms)
	require.NoError(t, err)
	assert.Equal(t, terms, searcher.calls)
}

func TestRunFetchCycle_EnrichmentFailureIsolated(t *testing.T) {
	repo := memory.NewArticleRepo()
	x := fixtures.RawRecord(1, nil)
	y := fixtures.RawRecord(2, nil)
	searcher := &stubSearcher{results: map[string][]json.RawMessage{"t": {x, y}}}
	enricher := &stubEnricher{failKeys: map[string]bool{"https://news.example.com/articles/1": true}}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.NewArticleCount())
	assert.Equal(t, int64(1), stats.EnrichErrors)

	stored := byKey(t, repo)
	require.Len(t, stored, 2)
	assert.False(t, stored["https://news.example.com/articles/1"].Enriched())
	assert.Nil(t, stored["https://news.example.com/articles/1"].Scores)
	assert.True(t, stored["https://news.example.com/articles/2"].Enriched())
}

func TestRunFetchCycle_EnrichmentPanicIsolated(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"t": {fixtures.RawRecord(1, nil), fixtures.RawRecord(2, nil)},
	}}
	enricher := &stubEnricher{panicKeys: map[string]bool{"https://news.example.com/articles/1": true}}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.NewArticleCount())
	assert.Equal(t, int64(1), stats.EnrichErrors)

	stored := byKey(t, repo)
	require.Len(t, stored, 2)
	assert.False(t, stored["https://news.example.com/articles/1"].Enriched())
	assert.True(t, stored["https://news.example.com/articles/2"].Enriched())
}

func TestRunFetchCycle_StorePanicIsolated(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"t": {fixtures.RawRecord(1, nil), fixtures.RawRecord(2, nil)},
	}}
	failing := panickingInsertRepo{repo, map[string]bool{"https://news.example.com/articles/1": true}}
	svc := ingest.NewService(failing, searcher, &stubEnricher{}, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NewArticleCount())
	assert.Equal(t, int64(1), stats.StoreErrors)
	assert.Contains(t, byKey(t, repo), "https://news.example.com/articles/2")
}

func TestRunFetchCycle_UpdateFailureCounted(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{"t": {fixtures.RawRecord(1, nil)}}}
	svc := ingest.NewService(failingUpdateRepo{repo}, searcher, &stubEnricher{}, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NewArticleCount())
	assert.Equal(t, int64(1), stats.StoreErrors)
	assert.False(t, byKey(t, repo)["https://news.example.com/articles/1"].Enriched())
}

func TestRunFetchCycle_InsertFailureSkipsArticle(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"t": {fixtures.RawRecord(1, nil), fixtures.RawRecord(2, nil)},
	}}
	enricher := &stubEnricher{}
	failing := failingInsertRepo{ArticleRepo: repo, failKeys: map[string]bool{"https://news.example.com/articles/1": true}}
	svc := ingest.NewService(failing, searcher, enricher, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.StoreErrors)
	assert.Equal(t, int64(1), stats.NewArticleCount())
	assert.Equal(t, int32(1), enricher.calls)
}

func TestRunFetchCycle_UnparsableTimestampPreserved(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"t": {fixtures.RawRecord(1, map[string]any{"publishedAt": "sometime"})},
	}}
	svc := ingest.NewService(repo, searcher, nil, ingest.Config{})

	_, err := svc.RunFetchCycle(context.Background(), []string{"t"})
	require.NoError(t, err)

	a := byKey(t, repo)["https://news.example.com/articles/1"]
	require.NotNil(t, a)
	assert.False(t, a.PublishedAt.Valid())
	assert.Equal(t, "sometime", a.PublishedAt.Raw)
	assert.False(t, a.Enriched(), "nil enricher leaves articles unenriched")
}

func TestRunFetchCycle_ParallelTermsShareKeys(t *testing.T) {
	repo := memory.NewArticleRepo()
	records := []json.RawMessage{fixtures.RawRecord(1, nil), fixtures.RawRecord(2, nil), fixtures.RawRecord(3, nil)}
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"a": records, "b": records, "c": records, "d": records,
	}}
	enricher := &stubEnricher{}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{Parallelism: 3})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Inserted)
	assert.Equal(t, int64(9), stats.Duplicated)
	assert.Equal(t, int32(3), enricher.calls)
	assert.Equal(t, 3, repo.Len())
}

func TestRunFetchCycle_CancelledContext(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]json.RawMessage{"t": {fixtures.RawRecord(1, nil)}}}
	repo := memory.NewArticleRepo()
	svc := ingest.NewService(repo, searcher, nil, ingest.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := svc.RunFetchCycle(ctx, []string{"t"})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Empty(t, searcher.calls)
	assert.Equal(t, 0, repo.Len())
}

func TestRunFetchCycle_DeadlineStopsBetweenRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	svc := ingest.NewService(memory.NewArticleRepo(), &stubSearcher{}, nil, ingest.Config{})
	_, err := svc.RunFetchCycle(ctx, []string{"t"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunFetchCycle_PanicInTermRecovered(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{
		results: map[string][]json.RawMessage{"ok": {fixtures.RawRecord(1, nil)}},
		panics:  map[string]bool{"bad": true},
	}
	svc := ingest.NewService(repo, searcher, nil, ingest.Config{})

	stats, err := svc.RunFetchCycle(context.Background(), []string{"bad", "ok"})
	require.ErrorIs(t, err, ingest.ErrTermPanicked)
	assert.Equal(t, int64(1), stats.NewArticleCount())
	assert.Equal(t, 1, repo.Len())
}

type stubExcerpts struct {
	mu      sync.Mutex
	content string
	err     error
	urls    []string
}

func (f *stubExcerpts) FetchContent(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.content, f.err
}

// recordingEnricher remembers the excerpt each article was enriched with.
type recordingEnricher struct {
	stubEnricher
	mu       sync.Mutex
	excerpts map[string]string
}

func (e *recordingEnricher) Enrich(ctx context.Context, a *entity.Article) (entity.Enrichment, error) {
	e.mu.Lock()
	if e.excerpts == nil {
		e.excerpts = map[string]string{}
	}
	e.excerpts[a.Key] = a.BodyExcerpt
	e.mu.Unlock()
	return e.stubEnricher.Enrich(ctx, a)
}

func TestRunFetchCycle_ExcerptFillFeedsEnricherOnly(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"ai": {fixtures.RawRecord(1, nil)},
	}}
	enricher := &recordingEnricher{}
	page := &stubExcerpts{content: fixtures.GenerateBody(500)}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{ExcerptThreshold: 200}).
		WithExcerptFetcher(page)

	_, err := svc.RunFetchCycle(context.Background(), []string{"ai"})
	require.NoError(t, err)

	key := "https://news.example.com/articles/1"
	assert.Equal(t, []string{key}, page.urls)
	assert.Equal(t, page.content, enricher.excerpts[key])

	stored := byKey(t, repo)[key]
	require.NotNil(t, stored)
	assert.Equal(t, "Body of story 1", stored.BodyExcerpt, "stored excerpt unchanged")
	assert.True(t, stored.Enriched())
}

func TestRunFetchCycle_ExcerptFillSkippedForLongExcerpt(t *testing.T) {
	repo := memory.NewArticleRepo()
	long := fixtures.GenerateBody(300)
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"ai": {fixtures.RawRecord(1, map[string]any{"content": long})},
	}}
	page := &stubExcerpts{content: "unused"}
	svc := ingest.NewService(repo, searcher, &stubEnricher{}, ingest.Config{ExcerptThreshold: 200}).
		WithExcerptFetcher(page)

	_, err := svc.RunFetchCycle(context.Background(), []string{"ai"})
	require.NoError(t, err)
	assert.Empty(t, page.urls)
}

func TestRunFetchCycle_ExcerptFillFailureFallsBack(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"ai": {fixtures.RawRecord(1, nil)},
	}}
	enricher := &recordingEnricher{}
	page := &stubExcerpts{err: errors.New("page unavailable")}
	svc := ingest.NewService(repo, searcher, enricher, ingest.Config{ExcerptThreshold: 200}).
		WithExcerptFetcher(page)

	stats, err := svc.RunFetchCycle(context.Background(), []string{"ai"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.EnrichErrors)
	assert.Equal(t, "Body of story 1", enricher.excerpts["https://news.example.com/articles/1"])
}

func TestRunFetchCycle_ExcerptFillNotUsedForDuplicates(t *testing.T) {
	repo := memory.NewArticleRepo()
	searcher := &stubSearcher{results: map[string][]json.RawMessage{
		"ai": {fixtures.RawRecord(1, nil)},
	}}
	page := &stubExcerpts{content: fixtures.GenerateBody(500)}
	svc := ingest.NewService(repo, searcher, &stubEnricher{}, ingest.Config{ExcerptThreshold: 200}).
		WithExcerptFetcher(page)

	for i := 0; i < 2; i++ {
		_, err := svc.RunFetchCycle(context.Background(), []string{"ai"})
		require.NoError(t, err)
	}
	assert.Len(t, page.urls, 1)
}
