// Package db provides database connection helpers.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the jobs table and its dedup indexes if they do not
// exist yet. Two partial unique indexes back the insert-if-absent contract:
// (source, url) when a canonical URL is known, and
// (source, lower(company), lower(title), posted_at) when it is not.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id          UUID PRIMARY KEY,
			title       TEXT NOT NULL,
			company     TEXT NOT NULL,
			location    TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			source      TEXT NOT NULL,
			posted_at   TIMESTAMPTZ,
			days_ago    INTEGER,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS jobs_source_url_key
			ON jobs (source, url) WHERE url <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS jobs_source_fallback_key
			ON jobs (source, lower(company), lower(title), posted_at)
			NULLS NOT DISTINCT WHERE url = ''`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
