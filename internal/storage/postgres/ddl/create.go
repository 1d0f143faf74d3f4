package ddl

import (
	"context"

	gddl "savload/internal/ddl"
	"savload/internal/storage"
)

// Dialect renders Postgres DDL with double-quoted identifiers and
// CREATE TABLE IF NOT EXISTS.
var Dialect = gddl.Dialect{Name: "postgres ddl", QuoteIdent: gddl.DoubleQuote, IfNotExists: true}

// BuildCreateTableSQL returns a Postgres CREATE TABLE IF NOT EXISTS statement
// for the given table definition.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return Dialect.BuildCreateTableSQL(t)
}

// EnsureTable creates the target Postgres table if it does not exist.
func EnsureTable(ctx context.Context, repo storage.Repository, def gddl.TableDef) error {
	sql, err := BuildCreateTableSQL(def)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, sql)
}
