// Package ddl contains Postgres-specific helpers for generating DDL.
package ddl

import (
	gddl "savload/internal/ddl"
	"savload/internal/schema"
)

// MapType maps a source column onto a Postgres SQL type.
//
//	float     -> DOUBLE PRECISION
//	date      -> DATE
//	datetime  -> TIMESTAMP
//	string    -> TEXT
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindDate:
		return "DATE"
	case schema.KindDateTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// FromColumns builds the table definition for fqn.
func FromColumns(fqn string, cols []schema.Column) gddl.TableDef {
	return gddl.FromColumns(fqn, cols, MapType)
}
