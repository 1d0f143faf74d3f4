// Package ddl provides SQLite-specific helpers for generating CREATE TABLE
// statements from the generic ddl.TableDef model.
//
// The builder here:
//   - Uses simple double-quoted identifiers: "table", "col".
//   - Emits CREATE TABLE IF NOT EXISTS.
package ddl

import (
	"context"

	gddl "savload/internal/ddl"
	"savload/internal/storage"
)

// Dialect renders SQLite DDL.
var Dialect = gddl.Dialect{Name: "sqlite ddl", QuoteIdent: gddl.DoubleQuote, IfNotExists: true}

// BuildCreateTableSQL returns a SQLite CREATE TABLE IF NOT EXISTS statement.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return Dialect.BuildCreateTableSQL(t)
}

// EnsureTable creates the table if it does not exist.
func EnsureTable(ctx context.Context, repo storage.Repository, def gddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}
