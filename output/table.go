package output

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders rows as an aligned text table. Cells of columns
// with a margin read "value ± margin".
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new text table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (f *TableFormatter) SetOutput(w io.Writer) {
	f.writer = w
}

// Format writes t as a table
func (f *TableFormatter) Format(t *Table) error {
	tw := tablewriter.NewWriter(f.writer)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(t.Columns)

	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
			if t.Errors[i] != 0 && v != nil {
				cells[i] += " ± " + strconv.FormatFloat(t.Errors[i], 'g', -1, 64)
			}
		}
		tw.Append(cells)
	}

	tw.Render()
	return nil
}
