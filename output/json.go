package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row with keys in column order. Columns
// with a margin get a companion <column>_error key; a repeated key gets a
// numeric suffix (_2, _3, ...).
func (j *JSONFormatter) Format(t *Table) error {
	header := t.header()
	keys, err := encodeKeys(header)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, row := range t.Rows {
		buf.Reset()
		buf.WriteByte('{')
		for i, v := range t.record(row) {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			value, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encoding column %s: %w", header[i], err)
			}
			buf.Write(value)
		}
		buf.WriteString("}\n")
		if _, err := j.writer.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// encodeKeys renders header names as JSON object keys, renaming repeats
func encodeKeys(header []string) ([][]byte, error) {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		seen[name] = true
	}
	used := make(map[string]bool, len(header))

	keys := make([][]byte, len(header))
	for i, name := range header {
		key := name
		for n := 2; used[key] || (key != name && seen[key]); n++ {
			key = name + "_" + strconv.Itoa(n)
		}
		used[key] = true
		encoded, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		keys[i] = encoded
	}
	return keys, nil
}
