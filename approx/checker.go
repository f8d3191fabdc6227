package approx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vegasq/approxq/query"
)

// supportedAggregates are the aggregate functions whose sample-based
// estimates carry an error margin
var supportedAggregates = map[string]bool{
	"AVG":   true,
	"COUNT": true,
	"SUM":   true,
}

// classification is the set of aggregate kinds found in one select list
type classification struct {
	supported   map[string]bool
	unsupported map[string]bool
}

// eligible holds iff exactly one class was seen and it is the supported one
func (c classification) eligible() bool {
	return len(c.supported) > 0 && len(c.unsupported) == 0
}

// reason explains why a select list is not eligible
func (c classification) reason() string {
	switch {
	case len(c.supported) == 0 && len(c.unsupported) == 0:
		return "select list has no aggregate function"
	case len(c.supported) == 0:
		return "unsupported aggregate " + joinNames(c.unsupported)
	case len(c.unsupported) > 0:
		return fmt.Sprintf("select list mixes supported aggregate %s with unsupported %s",
			joinNames(c.supported), joinNames(c.unsupported))
	}
	return ""
}

func joinNames(set map[string]bool) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// aggregateKind returns the function kind of an aggregate-function node.
// Windowed functions count: RANK() OVER (...) is an unsupported kind.
func aggregateKind(n query.Node) (string, bool) {
	switch n := n.(type) {
	case *query.AggregateExpr:
		return n.Function, true
	case *query.WindowExpr:
		return n.Function, true
	}
	return "", false
}

// checkSelectList classifies every aggregate-function node of a select list.
// Subqueries are not entered.
func checkSelectList(items []query.SelectItem) classification {
	c := classification{supported: map[string]bool{}, unsupported: map[string]bool{}}
	for _, item := range items {
		query.Inspect(item.Expr, func(n query.Node) bool {
			kind, ok := aggregateKind(n)
			if !ok {
				return true
			}
			if supportedAggregates[kind] {
				c.supported[kind] = true
			} else {
				c.unsupported[kind] = true
			}
			return true
		})
	}
	return c
}

// holdsSupportedAggregate reports whether expr is, or contains outside any
// subquery, a supported aggregate
func holdsSupportedAggregate(expr query.SelectExpression) bool {
	found := false
	query.Inspect(expr, func(n query.Node) bool {
		if kind, ok := aggregateKind(n); ok && supportedAggregates[kind] {
			found = true
		}
		return !found
	})
	return found
}

// indicate builds the per-column aggregate flags for a select list
func indicate(items []query.SelectItem) AggregateColumnIndicator {
	flags := make(AggregateColumnIndicator, len(items))
	for i, item := range items {
		flags[i] = holdsSupportedAggregate(item.Expr)
	}
	return flags
}

// DoesSupport reports whether the query can be approximated: its top-level
// select list must contain aggregate functions, all of them AVG, COUNT or
// SUM. Unparseable text is not supported.
func DoesSupport(text string) bool {
	return Check(text) == nil
}

// Check is DoesSupport with the reason: a *ParseError or an
// *UnsupportedQueryError, or nil when the query can be approximated.
func Check(text string) error {
	q, err := query.Parse(text)
	if err != nil {
		return &ParseError{Query: text, Err: err}
	}
	if c := checkSelectList(q.SelectList); !c.eligible() {
		return &UnsupportedQueryError{Reason: c.reason()}
	}
	return nil
}
