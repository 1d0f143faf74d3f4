// Package schema holds the logical column model shared by row sources and
// storage backends. Sources describe their columns with it; backends map it
// onto dialect-specific SQL types when a destination table is created.
package schema

import "strings"

// Kind is the logical type of a column's values.
type Kind string

const (
	// KindFloat columns carry float64 values (or nil for missing).
	KindFloat Kind = "float"
	// KindString columns carry string values (or nil).
	KindString Kind = "string"
	// KindDate columns carry time.Time values truncated to a day.
	KindDate Kind = "date"
	// KindDateTime columns carry time.Time values.
	KindDateTime Kind = "datetime"
)

// Column describes one column of a row source.
//
// Width is the declared maximum width in bytes for string columns and 0 for
// everything else. Label is an optional human-readable description.
type Column struct {
	Name  string
	Kind  Kind
	Width int
	Label string
}

// Names returns the column names in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// ParseKind maps a loosely written kind name to a Kind. Unknown names map to
// KindString.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "double", "numeric", "number":
		return KindFloat
	case "date":
		return KindDate
	case "datetime", "timestamp":
		return KindDateTime
	default:
		return KindString
	}
}
