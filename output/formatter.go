package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Formatter writes a result table in one output format
type Formatter interface {
	// Format writes t in the formatter's specific format
	Format(t *Table) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

var formatters = map[string]func(io.Writer) Formatter{
	"jsonl":   func(w io.Writer) Formatter { return NewJSONFormatter(w) },
	"csv":     func(w io.Writer) Formatter { return NewCSVFormatter(w) },
	"table":   func(w io.Writer) Formatter { return NewTableFormatter(w) },
	"parquet": func(w io.Writer) Formatter { return NewParquetFormatter(w) },
}

// New returns the formatter registered under name
func New(name string, w io.Writer) (Formatter, error) {
	ctor, ok := formatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (supported: %s)", name, strings.Join(Formats(), ", "))
	}
	return ctor(w), nil
}

// Formats lists the supported format names
func Formats() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
