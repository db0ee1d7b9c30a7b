package db

import (
	"context"
	"database/sql"
	"fmt"
)

const createArticles = `
CREATE TABLE IF NOT EXISTS articles (
    id               BIGSERIAL PRIMARY KEY,
    url              TEXT        NOT NULL UNIQUE,
    source_id        TEXT        NOT NULL DEFAULT '',
    source_name      TEXT        NOT NULL DEFAULT '',
    author           TEXT        NOT NULL DEFAULT '',
    title            TEXT        NOT NULL,
    summary          TEXT        NOT NULL DEFAULT '',
    body_excerpt     TEXT        NOT NULL DEFAULT '',
    image_url        TEXT        NOT NULL DEFAULT '',
    published_at     TIMESTAMPTZ,
    published_at_raw TEXT        NOT NULL DEFAULT '',
    fetched_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    scores           JSONB,
    topic            TEXT,
    sectors          JSONB,
    sentiment        TEXT,
    urgency_bucket   TEXT,
    enriched_at      TIMESTAMPTZ
)`

var articleIndexes = []string{
	// retention sweep
	`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at)`,
	// undated purge and ListRecent
	`CREATE INDEX IF NOT EXISTS idx_articles_fetched_at ON articles(fetched_at DESC)`,
}

// MigrateUp creates the articles table and its indexes. It is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createArticles); err != nil {
		return fmt.Errorf("create articles: %w", err)
	}
	for _, idx := range articleIndexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// MigrateDown drops the articles table. All stored articles are lost.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS articles`); err != nil {
		return fmt.Errorf("drop articles: %w", err)
	}
	return nil
}
