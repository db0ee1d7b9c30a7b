// Package store opens the article repository selected by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"newsintel/internal/config"
	"newsintel/internal/infra/adapter/persistence/memory"
	"newsintel/internal/infra/adapter/persistence/postgres"
	"newsintel/internal/infra/adapter/persistence/sqlite"
	"newsintel/internal/infra/db"
	"newsintel/internal/repository"
)

// Store is an open repository together with its connection lifecycle.
type Store struct {
	Repo   repository.ArticleRepository
	Driver string
	close  func() error
}

// Close releases the underlying connection. It is safe to call on the
// memory driver.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the store named by driver and makes sure the schema
// exists. A connection failure is returned to the caller, which treats it
// as fatal.
func Open(ctx context.Context, driver, sqlitePath string) (*Store, error) {
	switch driver {
	case config.StorePostgres:
		conn, err := db.Open(ctx, db.LoadConnectionConfigFromEnv())
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Store{Repo: postgres.NewArticleRepo(conn), Driver: driver, close: conn.Close}, nil

	case config.StoreSQLite:
		conn, err := sqlite.Open(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("sqlite store opened", slog.String("path", sqlitePath))
		return &Store{Repo: sqlite.NewArticleRepo(conn), Driver: driver, close: conn.Close}, nil

	case config.StoreMemory:
		slog.Warn("using in-memory store, articles are lost on exit")
		return &Store{Repo: memory.NewArticleRepo(), Driver: driver}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
