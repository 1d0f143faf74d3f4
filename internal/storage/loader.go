package storage

import (
	"context"
	"fmt"
	"sync"

	"savload/internal/ddl"
	"savload/internal/schema"
)

// Inspector reads destination table state.
type Inspector struct {
	repo   Repository
	schema string
}

// NewInspector returns an Inspector for tables in schemaName.
func NewInspector(repo Repository, schemaName string) *Inspector {
	return &Inspector{repo: repo, schema: schemaName}
}

// Exists reports whether table exists.
func (in *Inspector) Exists(ctx context.Context, table string) (bool, error) {
	fqn := ddl.QualifiedName(in.schema, table)
	ok, err := in.repo.TableExists(ctx, fqn)
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %w", ErrQuery, fqn, err)
	}
	return ok, nil
}

// RowCount returns the number of rows in table, or 0 when it does not exist.
func (in *Inspector) RowCount(ctx context.Context, table string) (int64, error) {
	ok, err := in.Exists(ctx, table)
	if err != nil || !ok {
		return 0, err
	}
	fqn := ddl.QualifiedName(in.schema, table)
	n, err := in.repo.CountRows(ctx, fqn)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", ErrQuery, fqn, err)
	}
	return n, nil
}

// Appender writes chunks. The first append to a table in this process
// creates the table if it is absent; the DDL is never issued again for
// that table.
type Appender struct {
	repo   Repository
	kind   string
	schema string

	mu      sync.Mutex
	ensured map[string]bool
}

// NewAppender returns an Appender writing to tables in schemaName using
// the DDL registered for kind.
func NewAppender(repo Repository, kind, schemaName string) *Appender {
	return &Appender{repo: repo, kind: kind, schema: schemaName, ensured: map[string]bool{}}
}

// Append writes rows to table in one bulk operation. On success the whole
// chunk is committed; on error none of it is. A backend-reported count that
// differs from len(rows) is an error.
func (a *Appender) Append(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	fqn := ddl.QualifiedName(a.schema, table)

	a.mu.Lock()
	ensured := a.ensured[fqn]
	a.mu.Unlock()
	if !ensured {
		if err := EnsureTable(ctx, a.kind, a.repo, fqn, cols); err != nil {
			return 0, fmt.Errorf("%w: create %s: %w", ErrWrite, fqn, err)
		}
		a.mu.Lock()
		a.ensured[fqn] = true
		a.mu.Unlock()
	}

	n, err := a.repo.CopyFrom(ctx, fqn, schema.Names(cols), rows)
	if err != nil {
		return 0, fmt.Errorf("%w: append %s: %w", ErrWrite, fqn, err)
	}
	if n != int64(len(rows)) {
		return n, fmt.Errorf("%w: append %s: backend reported %d rows, sent %d", ErrWrite, fqn, n, len(rows))
	}
	return n, nil
}
