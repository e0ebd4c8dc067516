// Package storage defines the backend-agnostic database contract used by the
// runner and a registry of backend factories.
//
// Backends (postgres, mssql, sqlite, mysql) register a Factory for their kind
// from init(); importing rowquery/internal/storage/all wires every built-in
// backend. Callers open a Repository with New and never import a backend
// directly.
package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"rowquery/internal/config"
	"rowquery/pkg/fromrow"
)

// Config selects and configures a backend.
type Config struct {
	Kind    string
	DSN     string
	Options config.Options
}

// FromConfig adapts the storage section of a run configuration.
func FromConfig(s config.Storage) Config {
	return Config{Kind: s.Kind, DSN: s.DSN, Options: s.Options}
}

// Rows is a result set that can be decoded with fromrow and must be closed.
// pgx.Rows satisfies it as is; database/sql backends return *fromrow.DBRows.
type Rows interface {
	fromrow.Rows
	Close()
}

// Repository runs statements against one database.
type Repository interface {
	// Query runs sql with positional args and returns its rows. The caller
	// must Close the rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) error

	Close()
}

// Factory opens a Repository for a backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind. It is typically
// called from backend packages' init functions.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered backend kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository using the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Kind, err)
	}
	log.Printf("storage: opened backend=%s", cfg.Kind)
	return repo, nil
}
