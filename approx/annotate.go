package approx

// DefaultErrorMargin is the placeholder margin reported for aggregate
// columns computed from sample tables.
const DefaultErrorMargin = 0.05

// Annotator turns the column flags and table substitutions of a rewrite
// into one error margin per output column.
type Annotator interface {
	Annotate(columns AggregateColumnIndicator, samples SampleTableMapping) ErrorMargins
}

// FixedMargin reports the same margin for every aggregate column of a query
// that read at least one sample table.
type FixedMargin struct {
	Margin float64
}

// Annotate implements Annotator
func (f FixedMargin) Annotate(columns AggregateColumnIndicator, samples SampleTableMapping) ErrorMargins {
	margins := make(ErrorMargins, len(columns))
	if samples.Len() == 0 {
		return margins
	}
	for i, aggregate := range columns {
		if aggregate {
			margins[i] = f.Margin
		}
	}
	return margins
}

// exactMargins is the margin vector of a query run without samples
func exactMargins(n int) ErrorMargins {
	return make(ErrorMargins, n)
}
