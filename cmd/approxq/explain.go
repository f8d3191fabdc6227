package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vegasq/approxq/approx"
)

// explain prints a rewrite in a human-readable form
func explain(w io.Writer, rw *approx.Rewrite) {
	_, _ = fmt.Fprintf(w, "rewritten:\n  %s\n", rw.SQL)

	_, _ = fmt.Fprintln(w, "samples:")
	if rw.Samples.Len() == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	}
	for _, original := range rw.Samples.Originals() {
		_, _ = fmt.Fprintf(w, "  %s -> %s\n", original, rw.Samples[original])
	}

	flags := make([]string, len(rw.Columns))
	for i, aggregate := range rw.Columns {
		flags[i] = "exact"
		if aggregate {
			flags[i] = "aggregate"
		}
	}
	_, _ = fmt.Fprintf(w, "columns:\n  %s\n", strings.Join(flags, ", "))

	_, _ = fmt.Fprintln(w, "scopes:")
	for _, s := range rw.Scopes {
		_, _ = fmt.Fprintf(w, "  depth %d (%s): multiplicity=%t decision=%s\n",
			s.Depth, s.Origin, s.MultiplicityActive, s.Decision)
	}

	if len(rw.Keyset) > 0 {
		keys := make([]string, len(rw.Keyset))
		for i := range rw.Keyset {
			keys[i] = rw.Keyset[i].String()
		}
		_, _ = fmt.Fprintf(w, "keyset:\n  %s\n", strings.Join(keys, ", "))
	}
}
