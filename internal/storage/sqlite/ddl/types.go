// Package ddl contains SQLite-specific helpers for generating DDL.
package ddl

import (
	gddl "savload/internal/ddl"
	"savload/internal/schema"
)

// MapType maps a source column onto a SQLite column type. SQLite is
// dynamically typed, so this picks the storage affinity:
//   - float          -> REAL
//   - date/datetime  -> TEXT (ISO-8601, as written by the driver)
//   - string         -> TEXT
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// FromColumns builds the table definition for fqn.
func FromColumns(fqn string, cols []schema.Column) gddl.TableDef {
	return gddl.FromColumns(fqn, cols, MapType)
}
