package approx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vegasq/approxq/query"
)

// Policy names accepted by PolicyByName
const (
	PolicyBootstrapping = "bootstrapping"
	PolicyDirect        = "direct"
)

// ScopeView is what a policy sees of a scope once all of its nested scopes
// have reported.
type ScopeView struct {
	Depth  int
	Origin Origin
	// Sampled is set when rows of this scope carry multiplicity
	Sampled bool
	// Aggregates is set when the scope aggregates: an aggregate in the
	// select list, HAVING or ORDER BY, or a GROUP BY clause
	Aggregates bool
	Windows    []*query.WindowExpr
	Distinct   []query.SelectExpression // DISTINCT aggregates, windowed or not
	// DistinctRows is set for SELECT DISTINCT
	DistinctRows bool
	Limited      bool // LIMIT or OFFSET present
}

// Policy decides which constructs a rewrite can carry. The rewrite engine
// is the same for every policy.
type Policy interface {
	// Name identifies the policy in configuration and logs
	Name() string
	// TracksMultiplicity reports whether scopes carry multiplicity
	TracksMultiplicity() bool
	// Review returns the constructs of one scope the policy cannot rewrite
	Review(view ScopeView) []Diagnostic
}

// PolicyByName returns the policy registered under name
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyBootstrapping, "":
		return Bootstrapping{}, nil
	case PolicyDirect:
		return Direct{}, nil
	}
	return nil, fmt.Errorf("unknown rewrite policy %q (known: %s)", name, strings.Join(PolicyNames(), ", "))
}

// PolicyNames lists the known policy names
func PolicyNames() []string {
	names := []string{PolicyBootstrapping, PolicyDirect}
	sort.Strings(names)
	return names
}

// Bootstrapping tracks row multiplicity through nested scopes so that
// sample-based estimates can later be resampled. It refuses constructs whose
// result depends on exact row identity while sampled rows are in play.
type Bootstrapping struct{}

func (Bootstrapping) Name() string { return PolicyBootstrapping }

func (Bootstrapping) TracksMultiplicity() bool { return true }

func (Bootstrapping) Review(view ScopeView) []Diagnostic {
	if !view.Sampled {
		return nil
	}

	var diags []Diagnostic
	for _, expr := range view.Distinct {
		diags = append(diags, Diagnostic{
			Depth:     view.Depth,
			Construct: expr.String(),
			Message:   "DISTINCT aggregate over sampled rows",
		})
	}

	// Aggregation consumes multiplicity; what remains below applies to
	// scopes still carrying it.
	if view.Aggregates {
		return diags
	}
	if view.DistinctRows {
		diags = append(diags, Diagnostic{
			Depth:     view.Depth,
			Construct: "SELECT DISTINCT",
			Message:   "duplicate elimination over rows with active multiplicity",
		})
	}
	for _, w := range view.Windows {
		diags = append(diags, Diagnostic{
			Depth:     view.Depth,
			Construct: w.String(),
			Message:   "window function over rows with active multiplicity",
		})
	}
	if view.Limited && view.Depth > 0 {
		diags = append(diags, Diagnostic{
			Depth:     view.Depth,
			Construct: "LIMIT/OFFSET",
			Message:   "row limit in a nested scope with active multiplicity",
		})
	}
	return diags
}

// Direct substitutes sample tables and accepts every construct. It keeps no
// multiplicity state.
type Direct struct{}

func (Direct) Name() string { return PolicyDirect }

func (Direct) TracksMultiplicity() bool { return false }

func (Direct) Review(ScopeView) []Diagnostic { return nil }
