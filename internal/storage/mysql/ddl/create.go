// Package ddl provides MySQL-specific helpers for generating DDL: backtick
// identifiers, CREATE TABLE IF NOT EXISTS, and a type mapping that keeps wide
// tables under InnoDB's row size limit by storing strings as TEXT.
package ddl

import (
	"context"
	"strings"

	gddl "savload/internal/ddl"
	"savload/internal/schema"
	"savload/internal/storage"
)

// Dialect renders MySQL DDL.
var Dialect = gddl.Dialect{Name: "mysql ddl", QuoteIdent: quoteIdent, IfNotExists: true}

// MapType maps a source column onto a MySQL column type.
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindDate:
		return "DATE"
	case schema.KindDateTime:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

// FromColumns builds the table definition for fqn.
func FromColumns(fqn string, cols []schema.Column) gddl.TableDef {
	return gddl.FromColumns(fqn, cols, MapType)
}

// BuildCreateTableSQL returns a MySQL CREATE TABLE IF NOT EXISTS statement.
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

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
