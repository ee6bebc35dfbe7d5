package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLKV implements KV on a PostgreSQL table.
type PostgreSQLKV struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLKV creates the backing table if it doesn't exist.
// The pool is owned by the storage layer and is not closed here.
func NewPostgreSQLKV(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLKV, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS question_cache (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create question_cache table: %w", err)
	}

	return &PostgreSQLKV{pool: pool}, nil
}

func (s *PostgreSQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, "SELECT value FROM question_cache WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgreSQLKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO question_cache (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *PostgreSQLKV) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM question_cache WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the storage layer owns the pool.
func (s *PostgreSQLKV) Close() error {
	return nil
}
