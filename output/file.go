package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// file closes the compressor before the file beneath it
type file struct {
	io.Writer
	closers []io.Closer
}

func (f *file) Close() error {
	var first error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Create opens path for writing. A .gz suffix compresses with gzip and a
// .zst or .zstd suffix with zstd.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz := gzip.NewWriter(f)
		return &file{Writer: gz, closers: []io.Closer{gz, f}}, nil
	case ".zst", ".zstd":
		enc, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		return &file{Writer: enc, closers: []io.Closer{enc, f}}, nil
	}
	return f, nil
}

// FormatFor guesses the output format from a file name, ignoring any
// compression suffix. It returns "" when the name says nothing.
func FormatFor(path string) string {
	name := strings.ToLower(path)
	for _, ext := range []string{".gz", ".zst", ".zstd"} {
		name = strings.TrimSuffix(name, ext)
	}
	switch filepath.Ext(name) {
	case ".csv":
		return "csv"
	case ".jsonl", ".json", ".ndjson":
		return "jsonl"
	case ".parquet":
		return "parquet"
	case ".txt":
		return "table"
	}
	return ""
}
