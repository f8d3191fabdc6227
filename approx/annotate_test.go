package approx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedMargin_Annotate(t *testing.T) {
	sampled := SampleTableMapping{
		{Schema: "public", Table: "orders"}: {Schema: "public", Table: "orders_sample_1pct"},
	}

	tests := []struct {
		name    string
		columns AggregateColumnIndicator
		samples SampleTableMapping
		want    ErrorMargins
	}{
		{
			name:    "aggregate columns with substitution",
			columns: AggregateColumnIndicator{true, false, true},
			samples: sampled,
			want:    ErrorMargins{0.05, 0, 0.05},
		},
		{
			name:    "no substitution",
			columns: AggregateColumnIndicator{true, false},
			samples: SampleTableMapping{},
			want:    ErrorMargins{0, 0},
		},
		{
			name:    "nil mapping",
			columns: AggregateColumnIndicator{true},
			samples: nil,
			want:    ErrorMargins{0},
		},
		{
			name:    "no columns",
			columns: AggregateColumnIndicator{},
			samples: sampled,
			want:    ErrorMargins{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FixedMargin{Margin: DefaultErrorMargin}.Annotate(tt.columns, tt.samples)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, len(tt.columns))
		})
	}
}

func TestFixedMargin_MarginIffAggregateAndSampled(t *testing.T) {
	annotator := FixedMargin{Margin: 0.1}
	mappings := []SampleTableMapping{
		{},
		{{Schema: "s", Table: "t"}: {Schema: "s", Table: "t_sample"}},
	}

	for _, samples := range mappings {
		for _, columns := range []AggregateColumnIndicator{{true}, {false}, {true, false, true, true}} {
			margins := annotator.Annotate(columns, samples)
			for i := range columns {
				assert.Equal(t, columns[i] && samples.Len() > 0, margins[i] > 0,
					"column %d of %v with %d samples", i, columns, samples.Len())
			}
		}
	}
}
