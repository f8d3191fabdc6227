package output

import (
	"fmt"
	"io"

	"github.com/segmentio/parquet-go"
)

// Cell is one value of a result in long form
type Cell struct {
	Row    int64   `parquet:"row"`
	Column string  `parquet:"column"`
	Value  *string `parquet:"value,optional"`
	Error  float64 `parquet:"error"`
}

// ParquetFormatter writes results as parquet with one record per cell, so
// results of any shape share a single schema.
type ParquetFormatter struct {
	writer io.Writer
}

// NewParquetFormatter creates a new parquet formatter
func NewParquetFormatter(w io.Writer) *ParquetFormatter {
	return &ParquetFormatter{writer: w}
}

// SetOutput sets the output writer
func (p *ParquetFormatter) SetOutput(w io.Writer) {
	p.writer = w
}

// Format writes every cell of t
func (p *ParquetFormatter) Format(t *Table) error {
	writer := parquet.NewGenericWriter[Cell](p.writer)

	if _, err := writer.Write(Cells(t)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// Cells flattens t into row-major cells
func Cells(t *Table) []Cell {
	cells := make([]Cell, 0, len(t.Rows)*len(t.Columns))
	for r, row := range t.Rows {
		for i, v := range row {
			cell := Cell{Row: int64(r), Column: t.Columns[i], Error: t.Errors[i]}
			if v != nil {
				s := formatValue(v)
				cell.Value = &s
			}
			cells = append(cells, cell)
		}
	}
	return cells
}
