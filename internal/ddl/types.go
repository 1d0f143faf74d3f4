package ddl

import "savload/internal/schema"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, DOUBLE PRECISION, NVARCHAR(40))
//   - Nullable: whether NULL is allowed
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "schema.table") and is
// quoted segment by segment by renderers.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a source column onto a backend SQL type.
type TypeMapper func(c schema.Column) string

// FromColumns builds a TableDef for fqn with one nullable column per source
// column, typed by mapType. Source data can always contain missing values,
// so no column is NOT NULL.
func FromColumns(fqn string, cols []schema.Column, mapType TypeMapper) TableDef {
	defs := make([]ColumnDef, len(cols))
	for i, c := range cols {
		defs[i] = ColumnDef{Name: c.Name, SQLType: mapType(c), Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: defs}
}

// QualifiedName joins schema and table with a dot, omitting an empty schema.
func QualifiedName(schemaName, table string) string {
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}
