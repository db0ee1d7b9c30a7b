// Package sqlite provides a single-file SQLite implementation of the article repository.
// Timestamps are stored as unix microseconds so that range comparisons stay
// numeric over the full range of years a feed can report.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"newsintel/internal/domain/entity"
	"newsintel/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    url              TEXT    NOT NULL UNIQUE,
    source_id        TEXT    NOT NULL DEFAULT '',
    source_name      TEXT    NOT NULL DEFAULT '',
    author           TEXT    NOT NULL DEFAULT '',
    title            TEXT    NOT NULL,
    summary          TEXT    NOT NULL DEFAULT '',
    body_excerpt     TEXT    NOT NULL DEFAULT '',
    image_url        TEXT    NOT NULL DEFAULT '',
    published_at     INTEGER,
    published_at_raw TEXT    NOT NULL DEFAULT '',
    fetched_at       INTEGER NOT NULL,
    scores           TEXT,
    topic            TEXT,
    sectors          TEXT,
    sentiment        TEXT,
    urgency_bucket   TEXT,
    enriched_at      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at);
CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at);
`

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

// ArticleRepo implements repository.ArticleRepository on SQLite.
type ArticleRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewArticleRepo creates a repository over a database returned by Open.
func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db, now: time.Now}
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

	query, args, err := qb.Insert("articles").
		Columns("url", "source_id", "source_name", "author", "title", "summary",
			"body_excerpt", "image_url", "published_at", "published_at_raw", "fetched_at").
		Values(key, a.SourceID, a.SourceName, a.Author, a.Title, a.Summary,
			a.BodyExcerpt, a.ImageURL, unixOrNull(a.PublishedAt), a.PublishedAt.Raw, fetchedAt.UnixMicro()).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: build: %w", err)
	}

	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("InsertIfAbsent: LastInsertId: %w", err)
		}
		return id, true, nil
	}

	var id int64
	err = repo.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE url = ?`, key).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, fmt.Errorf("InsertIfAbsent: %w: %s", entity.ErrNotFound, key)
	}
	if err != nil {
		return 0, false, fmt.Errorf("InsertIfAbsent: lookup: %w", err)
	}
	return id, false, nil
}

func (repo *ArticleRepo) UpdateByID(ctx context.Context, id int64, e entity.Enrichment) error {
	if id == 0 {
		slog.Warn("enrichment update skipped: article has no identity")
		return nil
	}

	scores, err := jsonOrNull(e.Scores, len(e.Scores))
	if err != nil {
		return fmt.Errorf("UpdateByID: scores: %w", err)
	}
	sectors, err := jsonOrNull(e.Sectors, len(e.Sectors))
	if err != nil {
		return fmt.Errorf("UpdateByID: sectors: %w", err)
	}

	query, args, err := qb.Update("articles").
		Set("scores", scores).
		Set("topic", e.Topic).
		Set("sectors", sectors).
		Set("sentiment", string(e.Sentiment)).
		Set("urgency_bucket", string(e.UrgencyBucket)).
		Set("enriched_at", repo.now().UnixMicro()).
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
	return repo.delete(ctx, "DeleteOlderThan", sq.And{
		sq.NotEq{"published_at": nil},
		sq.Lt{"published_at": cutoff.UnixMicro()},
	})
}

func (repo *ArticleRepo) DeleteUndatedFetchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return repo.delete(ctx, "DeleteUndatedFetchedBefore", sq.And{
		sq.Eq{"published_at": nil},
		sq.Lt{"fetched_at": cutoff.UnixMicro()},
	})
}

func (repo *ArticleRepo) delete(ctx context.Context, op string, where sq.Sqlizer) (int64, error) {
	query, args, err := qb.Delete("articles").Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: build: %w", op, err)
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

func (repo *ArticleRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Article, error) {
	if limit <= 0 {
		return []*entity.Article{}, nil
	}

	query, args, err := qb.Select("id", "url", "source_id", "source_name", "author", "title", "summary",
		"body_excerpt", "image_url", "published_at", "published_at_raw", "fetched_at",
		"scores", "topic", "sectors", "sentiment", "urgency_bucket", "enriched_at").
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
		var (
			a           entity.Article
			publishedAt sql.NullInt64
			fetchedAt   int64
			scores      sql.NullString
			topic       sql.NullString
			sectors     sql.NullString
			sentiment   sql.NullString
			urgency     sql.NullString
			enrichedAt  sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Key, &a.SourceID, &a.SourceName, &a.Author, &a.Title,
			&a.Summary, &a.BodyExcerpt, &a.ImageURL, &publishedAt, &a.PublishedAt.Raw,
			&fetchedAt, &scores, &topic, &sectors, &sentiment, &urgency, &enrichedAt); err != nil {
			return nil, fmt.Errorf("ListRecent: Scan: %w", err)
		}

		if publishedAt.Valid {
			a.PublishedAt.Time = time.UnixMicro(publishedAt.Int64).UTC()
			a.PublishedAt.Parsed = true
		}
		a.FetchedAt = time.UnixMicro(fetchedAt).UTC()
		if scores.Valid {
			if err := json.Unmarshal([]byte(scores.String), &a.Scores); err != nil {
				return nil, fmt.Errorf("ListRecent: decode scores of article %d: %w", a.ID, err)
			}
		}
		if sectors.Valid {
			if err := json.Unmarshal([]byte(sectors.String), &a.Sectors); err != nil {
				return nil, fmt.Errorf("ListRecent: decode sectors of article %d: %w", a.ID, err)
			}
		}
		a.Topic = topic.String
		a.Sentiment = entity.Sentiment(sentiment.String)
		a.UrgencyBucket = entity.Bucket(urgency.String)
		if enrichedAt.Valid {
			t := time.UnixMicro(enrichedAt.Int64).UTC()
			a.EnrichedAt = &t
		}
		articles = append(articles, &a)
	}
	return articles, rows.Err()
}

func unixOrNull(ts entity.Timestamp) sql.NullInt64 {
	if !ts.Valid() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ts.Time.UnixMicro(), Valid: true}
}

func jsonOrNull(v any, n int) (sql.NullString, error) {
	if n == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
