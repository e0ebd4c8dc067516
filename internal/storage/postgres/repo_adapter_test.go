package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rowquery/internal/config"
	"rowquery/internal/storage"

	"github.com/jackc/pgx/v5/pgconn"
)

// TestPostgresStorageRegistrationUsesNewRepositoryHook verifies that the
// "postgres" backend registered in init() goes through the newRepository hook
// and that wrappedRepo delegates Close.
func TestPostgresStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	ctx := context.Background()

	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		called   bool
		gotCfg   Config
		closed   bool
		fakeRepo = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		called = true
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	repo, err := storage.New(ctx, storage.Config{
		Kind:    "postgres",
		DSN:     "postgres://app@localhost/library",
		Options: config.Options{"max_conns": float64(6)},
	})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if !called {
		t.Fatalf("newRepository hook was not called")
	}
	if gotCfg.DSN != "postgres://app@localhost/library" || gotCfg.MaxConns != 6 {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}

	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("storage.New() type = %T, want *wrappedRepo", repo)
	}
	if w.Repository != fakeRepo {
		t.Fatalf("wrappedRepo.Repository = %p, want %p", w.Repository, fakeRepo)
	}

	repo.Close()
	if !closed {
		t.Fatalf("wrappedRepo.Close() did not invoke closeFn")
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "postgres://%zz"})
	if err == nil || !strings.Contains(err.Error(), "pgxpool config") {
		t.Fatalf("NewRepository error = %v, want pgxpool config error", err)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "author" does not exist`}
	err := describe("query", pgErr)
	if got, want := err.Error(), `query: relation "author" does not exist (42P01): `; !strings.HasPrefix(got, want) {
		t.Fatalf("describe() = %q, want prefix %q", got, want)
	}
	var back *pgconn.PgError
	if !errors.As(err, &back) || back.Code != "42P01" {
		t.Fatalf("describe() lost the *pgconn.PgError")
	}

	withDetail := describe("exec", &pgconn.PgError{Code: "23505", Message: "duplicate key", Detail: "Key (id)=(1) already exists."})
	if !strings.Contains(withDetail.Error(), "Key (id)=(1) already exists. (23505)") {
		t.Fatalf("describe() = %q, want detail", withDetail)
	}

	plain := errors.New("conn closed")
	if err := describe("rows", plain); !errors.Is(err, plain) || err.Error() != "rows: conn closed" {
		t.Fatalf("describe(plain) = %v", err)
	}
}
