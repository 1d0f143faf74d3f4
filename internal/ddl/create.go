// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// Backends supply a Dialect: how identifiers are quoted and whether the
// statement carries IF NOT EXISTS. Dialects without IF NOT EXISTS (SQL
// Server) wrap the rendered body in their own existence guard; see
// BuildColumnList.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect describes the rendering differences between backends.
type Dialect struct {
	// Name prefixes error messages, e.g. "sqlite ddl".
	Name string
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent func(string) string
	// IfNotExists adds IF NOT EXISTS after CREATE TABLE.
	IfNotExists bool
}

// DoubleQuote quotes an identifier with ANSI double quotes.
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// Generic is an unquoted dialect, used for previews and tests.
var Generic = Dialect{Name: "ddl", QuoteIdent: func(s string) string { return s }}

// QuoteFQN quotes each dotted segment of fqn, dropping empty segments.
//
//	"dbo.Users" -> [dbo].[Users]   (with bracket quoting)
//	"Users"     -> "Users"         (with double quotes)
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// BuildColumnList validates t and renders its column definitions, one per
// element:
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
func (d Dialect) BuildColumnList(t TableDef) ([]string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return nil, fmt.Errorf("%s: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("%s: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns))
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: column with empty name in table %s", d.Name, fqn)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("%s: duplicate column %s in table %s", d.Name, name, fqn)
		}
		seen[key] = true
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return nil, fmt.Errorf("%s: column %s missing SQLType", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
	}
	return cols, nil
}

// BuildCreateTableSQL renders:
//
//	CREATE TABLE [IF NOT EXISTS] <FQN> (
//	  <col1-def>,
//	  <col2-def>
//	);
func (d Dialect) BuildCreateTableSQL(t TableDef) (string, error) {
	cols, err := d.BuildColumnList(t)
	if err != nil {
		return "", err
	}
	guard := ""
	if d.IfNotExists {
		guard = "IF NOT EXISTS "
	}
	return fmt.Sprintf(
		"CREATE TABLE %s%s (\n  %s\n);",
		guard,
		d.QuoteFQN(strings.TrimSpace(t.FQN)),
		strings.Join(cols, ",\n  "),
	), nil
}
