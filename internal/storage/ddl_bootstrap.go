package storage

import (
	"context"
	"fmt"
	"sync"

	"savload/internal/schema"
)

// TableCreator is a backend-specific function that maps cols onto the
// backend's column types and creates fqn via repo.Exec if it does not exist
// yet. It must be idempotent.
//
// Backends register their implementation for a storage kind at init time.
type TableCreator func(ctx context.Context, repo Repository, fqn string, cols []schema.Column) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]TableCreator{}
)

// RegisterDDL registers (or replaces) the TableCreator for kind.
func RegisterDDL(kind string, fn TableCreator) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable locates the TableCreator for kind and invokes it.
func EnsureTable(ctx context.Context, kind string, repo Repository, fqn string, cols []schema.Column) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, fqn, cols)
}
