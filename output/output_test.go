package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/approxq/approx"
)

// sliceRows serves fixed values through approx.Rows
type sliceRows struct {
	columns []string
	data    [][]interface{}
	pos     int
	err     error
	closed  bool
}

func (s *sliceRows) Columns() ([]string, error) { return s.columns, nil }

func (s *sliceRows) Next() bool {
	if s.pos >= len(s.data) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceRows) Scan(dest ...interface{}) error {
	for i, v := range s.data[s.pos-1] {
		*(dest[i].(*interface{})) = v
	}
	return nil
}

func (s *sliceRows) Err() error   { return s.err }
func (s *sliceRows) Close() error { s.closed = true; return nil }

func regionTable() *Table {
	return &Table{
		Columns:     []string{"region", "total"},
		Errors:      approx.ErrorMargins{0, 0.05},
		Rows:        [][]interface{}{{"eu", 100.5}, {"us", nil}},
		Approximate: true,
	}
}

func TestCollect(t *testing.T) {
	rows := &sliceRows{
		columns: []string{"region", "total"},
		data:    [][]interface{}{{[]byte("eu"), 100.5}, {"us", int64(3)}},
	}
	res := &approx.Result{Rows: rows, Errors: approx.ErrorMargins{0, 0.05}, Approximate: true}

	table, err := Collect(res)
	require.NoError(t, err)
	assert.True(t, rows.closed)
	assert.Equal(t, []string{"region", "total"}, table.Columns)
	assert.Equal(t, [][]interface{}{{"eu", 100.5}, {"us", int64(3)}}, table.Rows)
	assert.True(t, table.Approximate)
}

func TestCollect_MarginShapeMismatch(t *testing.T) {
	t.Run("margins cannot be placed", func(t *testing.T) {
		// SELECT *, SUM(x) OVER () expands to more columns than select items
		rows := &sliceRows{columns: []string{"a", "b", "sum"}}
		_, err := Collect(&approx.Result{Rows: rows, Errors: approx.ErrorMargins{0, 0.05}})
		assert.ErrorContains(t, err, "3 columns for 2 select items")
		assert.True(t, rows.closed)
	})

	t.Run("star without margins", func(t *testing.T) {
		rows := &sliceRows{columns: []string{"a", "b", "c"}}
		table, err := Collect(&approx.Result{Rows: rows, Errors: approx.ErrorMargins{0}})
		require.NoError(t, err)
		assert.Equal(t, approx.ErrorMargins{0, 0, 0}, table.Errors)
	})
}

func TestCollect_RowError(t *testing.T) {
	rows := &sliceRows{columns: []string{"a"}, err: errors.New("cursor lost")}
	_, err := Collect(&approx.Result{Rows: rows, Errors: approx.ErrorMargins{0}})
	assert.ErrorContains(t, err, "cursor lost")
	assert.True(t, rows.closed)
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(regionTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, map[string]interface{}{"region": "eu", "total": 100.5, "total_error": 0.05}, first)

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Nil(t, second["total"])
	assert.NotContains(t, second, "region_error")

	assert.Equal(t, `{"region":"eu","total":100.5,"total_error":0.05}`, lines[0], "keys follow column order")
}

func TestJSONFormatter_DuplicateColumns(t *testing.T) {
	var buf bytes.Buffer
	table := &Table{
		Columns: []string{"n", "region", "n", "n_2"},
		Errors:  approx.ErrorMargins{0.05, 0, 0.05, 0},
		Rows:    [][]interface{}{{int64(4), "eu", int64(7), "x"}},
	}
	require.NoError(t, NewJSONFormatter(&buf).Format(table))
	assert.Equal(t, `{"n":4,"n_error":0.05,"region":"eu","n_3":7,"n_error_2":0.05,"n_2":"x"}`+"\n", buf.String())
}

func TestCSVFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVFormatter(&buf).Format(regionTable()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"region", "total", "total_error"},
		{"eu", "100.5", "0.05"},
		{"us", "", "0.05"},
	}, records)
}

func TestCSVFormatter_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	table := &Table{Columns: []string{"avg"}, Errors: approx.ErrorMargins{0.05}}
	require.NoError(t, NewCSVFormatter(&buf).Format(table))
	assert.Equal(t, "avg,avg_error\n", buf.String())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"@cmd", "'@cmd"},
		{"-it's", "'-it''s"},
		{"-12.5", "-12.5"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitize(tt.in), tt.in)
	}
}

func TestTableFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(&buf).Format(regionTable()))

	out := buf.String()
	assert.Contains(t, out, "region")
	assert.Contains(t, out, "100.5 ± 0.05")
	assert.NotContains(t, out, "eu ±")
}

func TestParquetFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewParquetFormatter(&buf).Format(regionTable()))

	reader := parquet.NewGenericReader[Cell](bytes.NewReader(buf.Bytes()))
	defer func() { _ = reader.Close() }()

	cells := make([]Cell, reader.NumRows())
	n, err := reader.Read(cells)
	if err != nil && !errors.Is(err, io.EOF) {
		require.NoError(t, err)
	}
	require.Equal(t, 4, n)

	assert.Equal(t, "total", cells[1].Column)
	require.NotNil(t, cells[1].Value)
	assert.Equal(t, "100.5", *cells[1].Value)
	assert.Equal(t, 0.05, cells[1].Error)
	assert.Equal(t, int64(1), cells[3].Row)
	assert.Nil(t, cells[3].Value)
}

func TestNew(t *testing.T) {
	for _, name := range Formats() {
		f, err := New(name, io.Discard)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}

	_, err := New("xml", io.Discard)
	assert.ErrorContains(t, err, "unknown output format")
	assert.Equal(t, []string{"csv", "jsonl", "parquet", "table"}, Formats())
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("avg,avg_error\n12.5,0.05\n")

	write := func(name string) string {
		path := filepath.Join(dir, name)
		w, err := Create(path)
		require.NoError(t, err)
		_, err = w.Write(payload)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return path
	}

	t.Run("plain", func(t *testing.T) {
		data, err := os.ReadFile(write("out.csv"))
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("gzip", func(t *testing.T) {
		f, err := os.Open(write("out.csv.gz"))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		data, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("zstd", func(t *testing.T) {
		f, err := os.Open(write("out.csv.zst"))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		dec, err := zstd.NewReader(f)
		require.NoError(t, err)
		defer dec.Close()
		data, err := io.ReadAll(dec)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Create(filepath.Join(dir, "nope", "out.csv"))
		assert.ErrorContains(t, err, "creating output file")
	})
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"out.csv":          "csv",
		"out.CSV.gz":       "csv",
		"out.jsonl.zst":    "jsonl",
		"out.parquet":      "parquet",
		"report.txt":       "table",
		"out":              "",
		"archive.tar.zstd": "",
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatFor(path), path)
	}
}
