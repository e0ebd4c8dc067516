// Package mysql implements a MySQL repository on go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rowquery/internal/storage"
	"rowquery/pkg/fromrow"

	"github.com/go-sql-driver/mysql"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN string

	// ParseTime makes DATE and DATETIME columns arrive as time.Time instead of
	// []byte. fromrow can parse either, but time.Time keeps the location.
	ParseTime bool
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if cfg.ParseTime {
		mc.ParseTime = true
	}
	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, describe("ping", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Query runs sql and adapts the result set for fromrow.
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

func describe(op string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return fmt.Errorf("%s: mysql error %d (%s): %w", op, me.Number, me.SQLState, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
