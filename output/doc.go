// Package output renders approximate query results.
//
// Collect reads an approx.Result into a Table that keeps the per-column
// error margins next to the values. A Formatter then writes the table:
//
//   - jsonl: one JSON object per row; columns with a margin get a
//     <column>_error key
//   - csv: header row, with a <column>_error column after each column
//     that has a margin
//   - table: aligned text, cells with a margin read "value ± margin"
//   - parquet: one record per cell (row, column, value, error)
//
// Create opens an output file and compresses it by suffix (.gz, .zst).
//
//	table, err := output.Collect(res)
//	if err != nil {
//	    return err
//	}
//	f, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    return err
//	}
//	return f.Format(table)
package output
