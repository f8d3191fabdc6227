package output

import (
	"fmt"
	"time"

	"github.com/vegasq/approxq/approx"
)

// Table is a fully read result with its error margins
type Table struct {
	Columns     []string
	Errors      approx.ErrorMargins // one per column
	Rows        [][]interface{}
	Approximate bool
}

// Collect reads every row of res and closes its row set
func Collect(res *approx.Result) (*Table, error) {
	defer func() { _ = res.Rows.Close() }()

	columns, err := res.Rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	t := &Table{
		Columns:     columns,
		Errors:      res.Errors,
		Approximate: res.Approximate,
	}
	if len(t.Errors) != len(columns) {
		// A star expanded; margins can only be placed when there are none
		if !allZero(res.Errors) {
			return nil, fmt.Errorf("result has %d columns for %d select items: cannot place error margins", len(columns), len(res.Errors))
		}
		t.Errors = make(approx.ErrorMargins, len(columns))
	}

	for res.Rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := res.Rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		t.Rows = append(t.Rows, values)
	}
	if err := res.Rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}

	return t, nil
}

func allZero(margins approx.ErrorMargins) bool {
	for _, m := range margins {
		if m != 0 {
			return false
		}
	}
	return true
}

// normalize converts driver byte slices to strings and times to RFC 3339
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return v
}

// errorColumn names the companion column carrying the margin of column
func errorColumn(column string) string {
	return column + "_error"
}

// header returns the columns followed in place by an error column for
// every column that carries a margin
func (t *Table) header() []string {
	out := make([]string, 0, len(t.Columns)*2)
	for i, col := range t.Columns {
		out = append(out, col)
		if t.Errors[i] != 0 {
			out = append(out, errorColumn(col))
		}
	}
	return out
}

// record returns row values laid out like header
func (t *Table) record(row []interface{}) []interface{} {
	out := make([]interface{}, 0, len(row)*2)
	for i, v := range row {
		out = append(out, v)
		if t.Errors[i] != 0 {
			out = append(out, t.Errors[i])
		}
	}
	return out
}
