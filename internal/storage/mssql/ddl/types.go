// Package ddl contains MSSQL-specific helpers for generating DDL.
package ddl

import (
	"fmt"

	gddl "savload/internal/ddl"
	"savload/internal/schema"
)

// maxNVarChar is the widest NVARCHAR(n) before NVARCHAR(MAX) is needed.
const maxNVarChar = 4000

// MapType maps a source column onto a SQL Server column type. String
// columns keep their declared width when one is known.
func MapType(c schema.Column) string {
	switch c.Kind {
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindDate:
		return "DATE"
	case schema.KindDateTime:
		return "DATETIME2"
	default:
		if c.Width > 0 && c.Width <= maxNVarChar {
			return fmt.Sprintf("NVARCHAR(%d)", c.Width)
		}
		return "NVARCHAR(MAX)"
	}
}

// FromColumns builds the table definition for fqn.
func FromColumns(fqn string, cols []schema.Column) gddl.TableDef {
	return gddl.FromColumns(fqn, cols, MapType)
}
