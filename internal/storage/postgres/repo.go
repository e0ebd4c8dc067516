// Package postgres implements a Postgres repository on a pgx v5 connection
// pool. Rows are returned as pgx.Rows, which decode with fromrow directly and
// carry pgx's native value types (int64, string, time.Time, pgtype.Numeric).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"rowquery/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN      string // connection string for pgxpool
	MaxConns int32  // pool size; 0 keeps the pgxpool default
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, describe("ping", err)
	}
	return &Repository{pool: pool}, pool.Close, nil
}

// Query runs sql on a pooled connection. The connection returns to the pool
// when the rows are closed.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) (storage.Rows, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, describe("query", err)
	}
	return &pgRows{Rows: rows}, nil
}

// Exec runs a statement that returns no rows.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return describe("exec", err)
	}
	return nil
}

// pgRows reports server errors raised while streaming with their SQLSTATE.
type pgRows struct {
	pgx.Rows
}

func (r *pgRows) Err() error {
	if err := r.Rows.Err(); err != nil {
		return describe("rows", err)
	}
	return nil
}

// describe adds the server's detail and SQLSTATE to err when it is a
// *pgconn.PgError; the original error stays reachable with errors.As.
func describe(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Errorf("%s: %s: %s (%s): %w", op, pgErr.Message, pgErr.Detail, pgErr.SQLState(), err)
		}
		return fmt.Errorf("%s: %s (%s): %w", op, pgErr.Message, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
