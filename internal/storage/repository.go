// Package storage defines the backend-agnostic contract for destination
// tables and a small registry of backend factories.
//
// Backends (postgres, mssql, sqlite, mysql) live in subpackages and register
// themselves from init; importing savload/internal/storage/all enables all
// of them. On top of a Repository this package provides the two roles the
// conversion driver needs: an Inspector that reads a table's existence and
// row count, and an Appender that writes one chunk as a single bulk
// operation, creating the table on first use.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrQuery wraps failures to read table state.
	ErrQuery = errors.New("storage: query failed")
	// ErrWrite wraps failures to create a table or append a chunk.
	ErrWrite = errors.New("storage: write failed")
)

// Repository is the minimal surface a backend implements. Table names are
// fully qualified ("schema.table" or just "table"); backends quote them.
type Repository interface {
	// TableExists reports whether fqn exists.
	TableExists(ctx context.Context, fqn string) (bool, error)

	// CountRows returns SELECT COUNT(*) for fqn.
	CountRows(ctx context.Context, fqn string) (int64, error)

	// CopyFrom appends rows to fqn in one all-or-nothing bulk operation and
	// returns the number of rows the backend reports as written. Values
	// are positional and aligned with columns.
	CopyFrom(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error)

	// Exec runs a DDL statement.
	Exec(ctx context.Context, sql string) error

	// Close releases the connection pool.
	Close()
}

// TableLister is implemented by repositories that can enumerate tables.
// Every bundled backend does.
type TableLister interface {
	// ListTables returns base table names in schemaName, sorted. An empty
	// schemaName means the backend default.
	ListTables(ctx context.Context, schemaName string) ([]string, error)
}

// ListTables lists the tables of repo in schemaName, or fails when the
// backend cannot enumerate tables.
func ListTables(ctx context.Context, repo Repository, schemaName string) ([]string, error) {
	tl, ok := repo.(TableLister)
	if !ok {
		return nil, fmt.Errorf("%w: backend cannot list tables", ErrQuery)
	}
	names, err := tl.ListTables(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %w", ErrQuery, err)
	}
	return names, nil
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "mssql".
	Kind string
	// DSN is passed to the driver unchanged.
	DSN string
	// Schema qualifies table names. Empty means the backend default.
	Schema string
}

// defaultSchemas are used when Config.Schema is empty.
var defaultSchemas = map[string]string{
	"postgres": "public",
	"mssql":    "dbo",
}

// SchemaOrDefault returns c.Schema or the default for c.Kind ("" for
// backends without schemas).
func (c Config) SchemaOrDefault() string {
	if s := strings.TrimSpace(c.Schema); s != "" {
		return s
	}
	return defaultSchemas[c.Kind]
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
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
