// Package mssql implements a Microsoft SQL Server repository using go-mssqldb
// through database/sql.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rowquery/internal/storage"
	"rowquery/pkg/fromrow"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN          string
	MaxOpenConns int // 0 leaves database/sql unlimited
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, describe("ping", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db}, close, nil
}

// Query runs sql and adapts the result set for fromrow. Parameters use the
// driver's @p1 / @name placeholders.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) (storage.Rows, error) {
	rows, err := r.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, describe("query", err)
	}
	return fromrow.SQLRows(rows), nil
}

// Exec runs a statement that returns no rows.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, sql, args...); err != nil {
		return describe("exec", err)
	}
	return nil
}

// describe prefixes server errors with their number and line so failures in
// long batches can be located.
func describe(op string, err error) error {
	var me mssql.Error
	if errors.As(err, &me) {
		return fmt.Errorf("%s: mssql error %d (state %d, line %d): %s: %w",
			op, me.Number, me.State, me.LineNo, me.Message, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
