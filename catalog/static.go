// Package catalog holds the sample table mappings the rewriter consults.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/approxq/approx"
)

// Entry maps one original table to its sample
type Entry struct {
	Original approx.TableUniqueName
	Sample   approx.TableUniqueName
}

// Static is an in-memory catalog. Replace swaps the whole mapping at once,
// so lookups never observe a partial update.
type Static struct {
	snapshot atomic.Pointer[map[approx.TableUniqueName]approx.TableUniqueName]
}

// NewStatic creates a catalog holding entries
func NewStatic(entries ...Entry) *Static {
	s := &Static{}
	s.Replace(entries)
	return s
}

// Replace publishes a new mapping. A later entry for the same original
// table wins.
func (s *Static) Replace(entries []Entry) {
	m := make(map[approx.TableUniqueName]approx.TableUniqueName, len(entries))
	for _, e := range entries {
		m[e.Original] = e.Sample
	}
	s.snapshot.Store(&m)
}

// Lookup implements approx.Catalog
func (s *Static) Lookup(original approx.TableUniqueName) (approx.TableUniqueName, bool) {
	m := s.snapshot.Load()
	if m == nil {
		return approx.TableUniqueName{}, false
	}
	sample, ok := (*m)[original]
	return sample, ok
}

// Entries returns the current mapping sorted by original table
func (s *Static) Entries() []Entry {
	m := s.snapshot.Load()
	if m == nil {
		return nil
	}
	entries := make([]Entry, 0, len(*m))
	for original, sample := range *m {
		entries = append(entries, Entry{Original: original, Sample: sample})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Original.String() < entries[j].Original.String()
	})
	return entries
}

// fileSchema is the YAML layout of a catalog file
type fileSchema struct {
	DefaultSchema string `yaml:"default_schema"`
	Samples       []struct {
		Original string `yaml:"original"`
		Sample   string `yaml:"sample"`
	} `yaml:"samples"`
}

// LoadFile reads a YAML catalog file:
//
//	default_schema: public
//	samples:
//	  - original: public.orders
//	    sample: public.orders_sample_1pct
//
// Unqualified names take default_schema, or defaultSchema when the file
// sets none.
func LoadFile(path, defaultSchema string) ([]Entry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Decode(data, defaultSchema)
}

// Decode parses catalog YAML. See LoadFile for the layout.
func Decode(data []byte, defaultSchema string) ([]Entry, error) {
	var f fileSchema
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if f.DefaultSchema != "" {
		defaultSchema = f.DefaultSchema
	}

	seen := make(map[approx.TableUniqueName]bool, len(f.Samples))
	entries := make([]Entry, 0, len(f.Samples))
	for i, s := range f.Samples {
		original, err := approx.ParseTableUniqueName(s.Original, defaultSchema)
		if err != nil {
			return nil, fmt.Errorf("samples[%d].original: %w", i, err)
		}
		sample, err := approx.ParseTableUniqueName(s.Sample, defaultSchema)
		if err != nil {
			return nil, fmt.Errorf("samples[%d].sample: %w", i, err)
		}
		if original == sample {
			return nil, fmt.Errorf("samples[%d]: table %s cannot sample itself", i, original)
		}
		if seen[original] {
			return nil, fmt.Errorf("samples[%d]: duplicate entry for %s", i, original)
		}
		seen[original] = true
		entries = append(entries, Entry{Original: original, Sample: sample})
	}
	return entries, nil
}
