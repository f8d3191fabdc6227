package approx

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vegasq/approxq/query"
)

// DefaultSchema is used for unqualified table references when the processor
// is not configured with another one.
const DefaultSchema = "public"

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// TableUniqueName identifies a table independently of how a query spelled it.
// Unquoted parts are lower-cased; a quoted table keeps its case, so "Orders"
// and orders are different tables.
type TableUniqueName struct {
	Schema string
	Table  string
}

// NewTableUniqueName builds a canonical name, substituting defaultSchema for
// an empty schema.
func NewTableUniqueName(schema, table, defaultSchema string) TableUniqueName {
	if schema == "" {
		schema = defaultSchema
	}
	return TableUniqueName{
		Schema: strings.ToLower(schema),
		Table:  strings.ToLower(table),
	}
}

// Canonical returns the unique name of a table reference from a query
func Canonical(name query.TableName, defaultSchema string) TableUniqueName {
	n := NewTableUniqueName(name.Schema, name.Name, defaultSchema)
	if name.Quoted {
		n.Table = name.Name
	}
	return n
}

// Qualify fills an empty schema with defaultSchema, leaving case alone
func (n TableUniqueName) Qualify(defaultSchema string) TableUniqueName {
	if n.Schema == "" {
		n.Schema = defaultSchema
	}
	return n
}

// ParseTableUniqueName parses "schema.table" or "table". The schema may itself
// contain dots (catalog.schema.table); the table is the last part. A table
// written in double quotes keeps its case.
func ParseTableUniqueName(s, defaultSchema string) (TableUniqueName, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return TableUniqueName{}, fmt.Errorf("invalid table name %q", s)
	}
	if len(s) > 1 && strings.HasSuffix(s, `"`) {
		open := strings.LastIndex(s[:len(s)-1], `"`)
		if open < 0 || open == len(s)-2 || (open > 0 && s[open-1] != '.') {
			return TableUniqueName{}, fmt.Errorf("invalid table name %q", s)
		}
		n := NewTableUniqueName("", "", defaultSchema)
		if open > 0 {
			n.Schema = strings.ToLower(s[:open-1])
		}
		n.Table = s[open+1 : len(s)-1]
		return n, nil
	}
	if i := strings.LastIndex(s, "."); i >= 0 {
		return NewTableUniqueName(s[:i], s[i+1:], defaultSchema), nil
	}
	return NewTableUniqueName("", s, defaultSchema), nil
}

// String renders schema.table
func (n TableUniqueName) String() string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "." + n.Table
}

// SQL renders the name for use in a query, quoting parts that are not plain
// identifiers.
func (n TableUniqueName) SQL() string {
	table := sqlIdent(n.Table)
	if n.Schema == "" {
		return table
	}
	parts := strings.Split(n.Schema, ".")
	for i, part := range parts {
		parts[i] = sqlIdent(part)
	}
	return strings.Join(parts, ".") + "." + table
}

func sqlIdent(s string) string {
	if plainIdent.MatchString(s) {
		return s
	}
	return query.QuoteIdent(s)
}

// SampleTableMapping maps original tables to the sample tables substituted
// for them during one rewrite.
type SampleTableMapping map[TableUniqueName]TableUniqueName

// Len returns the number of substituted tables
func (m SampleTableMapping) Len() int {
	return len(m)
}

// Originals returns the substituted original tables in name order
func (m SampleTableMapping) Originals() []TableUniqueName {
	names := make([]TableUniqueName, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})
	return names
}

// record adds a substitution unless the original is already mapped
func (m SampleTableMapping) record(original, sample TableUniqueName) {
	if _, ok := m[original]; !ok {
		m[original] = sample
	}
}

// merge copies other into m, keeping existing entries
func (m SampleTableMapping) merge(other SampleTableMapping) {
	for original, sample := range other {
		m.record(original, sample)
	}
}

// AggregateColumnIndicator flags, per top-level select item, whether the item
// holds a supported aggregate.
type AggregateColumnIndicator []bool

// ErrorMargins holds one error fraction per top-level select item
type ErrorMargins []float64
