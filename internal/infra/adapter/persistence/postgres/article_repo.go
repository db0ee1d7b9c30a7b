// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"newsintel/internal/domain/entity"
	"newsintel/internal/repository"
	"newsintel/internal/resilience/circuitbreaker"
)

// psql renders $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"id", "url", "source_id", "source_name", "author", "title", "summary",
	"body_excerpt", "image_url", "published_at", "published_at_raw", "fetched_at",
	"scores", "topic", "sectors", "sentiment", "urgency_bucket", "enriched_at",
}

// ArticleRepo stores articles in PostgreSQL. Key uniqueness is enforced by
// the UNIQUE constraint on articles.url together with ON CONFLICT DO NOTHING.
type ArticleRepo struct {
	db  *circuitbreaker.DBCircuitBreaker
	now func() time.Time
}

// NewArticleRepo wraps db with the database circuit breaker.
func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{
		db:  circuitbreaker.NewDBCircuitBreaker(db),
		now: time.Now,
	}
}

var _ repository.ArticleRepository = (*ArticleRepo)(nil)

// WithClock overrides the clock used for fetched_at and enriched_at.
func (repo *ArticleRepo) WithClock(now func() time.Time) *ArticleRepo {
	repo.now = now
	return repo
}

func (repo *ArticleRepo) InsertIfAbsent(ctx context.Context, key string, a *entity.Article) (int64, bool, error) {
	if strings.TrimSpace(key) == "" {
		return 0, false, fmt.Errorf("InsertIfAbsent: %w: empty key", entity.ErrInvalidInput)
	}

	fetchedAt := a.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = repo.now()
	}

	query, args, err := psql.Insert("articles").
		Columns("url", "source_id", "source_name", "author", "title", "summary",
			"body_excerpt", "image_url", "published_at", "published_at_raw", "fetched_at").
		Values(key, a.SourceID, a.SourceName, a.Author, a.Title, a.Summary,
			a.BodyExcerpt, a.ImageURL, nullTime(a.PublishedAt), a.PublishedAt.Raw, fetchedAt).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: build: %w", err)
	}

	id, found, err := repo.queryID(ctx, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	if found {
		return id, true, nil
	}

	// Conflict: the row already exists, look up its identity.
	query, args, err = psql.Select("id").From("articles").Where(sq.Eq{"url": key}).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: build lookup: %w", err)
	}
	id, found, err = repo.queryID(ctx, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: lookup: %w", err)
	}
	if !found {
		// Deleted between the conflicting insert and the lookup.
		return 0, false, fmt.Errorf("InsertIfAbsent: %w: %s", entity.ErrNotFound, key)
	}
	return id, false, nil
}

func (repo *ArticleRepo) queryID(ctx context.Context, query string, args ...interface{}) (int64, bool, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, false, fmt.Errorf("Scan: %w", err)
	}
	return id, true, rows.Err()
}

func (repo *ArticleRepo) UpdateByID(ctx context.Context, id int64, e entity.Enrichment) error {
	if id == 0 {
		slog.Warn("enrichment update skipped: article has no identity")
		return nil
	}

	scores, err := marshalNullable(e.Scores)
	if err != nil {
		return fmt.Errorf("UpdateByID: scores: %w", err)
	}
	sectors, err := marshalNullable(e.Sectors)
	if err != nil {
		return fmt.Errorf("UpdateByID: sectors: %w", err)
	}

	query, args, err := psql.Update("articles").
		Set("scores", scores).
		Set("topic", e.Topic).
		Set("sectors", sectors).
		Set("sentiment", string(e.Sentiment)).
		Set("urgency_bucket", string(e.UrgencyBucket)).
		Set("enriched_at", repo.now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("UpdateByID: build: %w", err)
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("UpdateByID: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.Warn("enrichment update matched no article", slog.Int64("article_id", id))
	}
	return nil
}

func (repo *ArticleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	// NULL published_at never satisfies the comparison.
	return repo.delete(ctx, "DeleteOlderThan", sq.Lt{"published_at": cutoff})
}

func (repo *ArticleRepo) DeleteUndatedFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return repo.delete(ctx, "DeleteUndatedFetchedBefore", sq.And{
		sq.Eq{"published_at": nil},
		sq.Lt{"fetched_at": cutoff},
	})
}

func (repo *ArticleRepo) delete(ctx context.Context, op string, where sq.Sqlizer) (int64, error) {
	query, args, err := psql.Delete("articles").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: build: %w", op, err)
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: RowsAffected: %w", op, err)
	}
	return n, nil
}

func (repo *ArticleRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		return []*entity.Article{}, nil
	}

	query, args, err := psql.Select(articleColumns...).
		From("articles").
		OrderBy("fetched_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListRecent: build: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanArticle(rows *sql.Rows) (*entity.Article, error) {
	var (
		a           entity.Article
		publishedAt sql.NullTime
		scores      []byte
		topic       sql.NullString
		sectors     []byte
		sentiment   sql.NullString
		urgency     sql.NullString
		enrichedAt  sql.NullTime
	)
	if err := rows.Scan(&a.ID, &a.Key, &a.SourceID, &a.SourceName, &a.Author, &a.Title,
		&a.Summary, &a.BodyExcerpt, &a.ImageURL, &publishedAt, &a.PublishedAt.Raw,
		&a.FetchedAt, &scores, &topic, &sectors, &sentiment, &urgency, &enrichedAt); err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}

	if publishedAt.Valid {
		a.PublishedAt.Time = publishedAt.Time
		a.PublishedAt.Parsed = true
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &a.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of article %d: %w", a.ID, err)
		}
	}
	if len(sectors) > 0 {
		if err := json.Unmarshal(sectors, &a.Sectors); err != nil {
			return nil, fmt.Errorf("decode sectors of article %d: %w", a.ID, err)
		}
	}
	a.Topic = topic.String
	a.Sentiment = entity.Sentiment(sentiment.String)
	a.UrgencyBucket = entity.Bucket(urgency.String)
	if enrichedAt.Valid {
		t := enrichedAt.Time
		a.EnrichedAt = &t
	}
	return &a, nil
}

func nullTime(ts entity.Timestamp) sql.NullTime {
	return sql.NullTime{Time: ts.Time, Valid: ts.Valid()}
}

// marshalNullable encodes v as JSON text, or NULL when v is empty.
func marshalNullable[T ~map[string]float64 | ~[]string](v T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
