package approx

import (
	"strings"

	"github.com/vegasq/approxq/query"
)

// Origin tells how a scope was reached from its parent
type Origin int

const (
	OriginRoot    Origin = iota // outermost query
	OriginCTE                   // WITH body
	OriginFrom                  // derived table in FROM
	OriginJoin                  // derived table in JOIN
	OriginOn                    // subquery in a JOIN condition
	OriginWhere                 // subquery in WHERE
	OriginHaving                // subquery in HAVING
	OriginSelect                // scalar subquery in the select list
	OriginOrderBy               // scalar subquery in ORDER BY
)

var originNames = [...]string{"root", "cte", "from", "join", "on", "where", "having", "select", "order by"}

func (o Origin) String() string {
	if int(o) < len(originNames) {
		return originNames[o]
	}
	return "unknown"
}

// predicate reports whether scopes of this origin sit under a predicate
func (o Origin) predicate() bool {
	return o == OriginWhere || o == OriginHaving || o == OriginOn
}

// Decision is what a scope did with row multiplicity when it closed
type Decision int

const (
	DecisionNone       Decision = iota // scope never carried multiplicity
	DecisionConsumed                   // an aggregation absorbed it
	DecisionPropagated                 // handed to the enclosing scope
	DecisionDropped                    // still active at the outermost scope
)

var decisionNames = [...]string{"none", "consumed", "propagated", "dropped"}

func (d Decision) String() string {
	if int(d) < len(decisionNames) {
		return decisionNames[d]
	}
	return "unknown"
}

// ScopeAnnotation is the final state of one query scope
type ScopeAnnotation struct {
	Depth  int
	Origin Origin
	// MultiplicityActive is set when the scope read sampled rows, directly
	// or through a nested scope that propagated its multiplicity.
	MultiplicityActive bool
	Decision           Decision
	// Keyset holds the grouping columns of the outermost scope
	Keyset []query.ColumnRef
}

// Scope is the frame for one query level while it is being rewritten. A
// frame is created by its parent and discarded when its query closes.
type Scope struct {
	parent         *Scope
	depth          int
	origin         Origin
	underPredicate bool
	ctes           map[string]bool
	qualifiers     map[string]string // lower-cased schema.table -> sample alias
}

func newRootScope() *Scope {
	return &Scope{origin: OriginRoot}
}

// child opens a frame for a nested query
func (s *Scope) child(origin Origin) *Scope {
	return &Scope{
		parent:         s,
		depth:          s.depth + 1,
		origin:         origin,
		underPredicate: s.underPredicate || origin.predicate(),
	}
}

// root reports whether s is the outermost scope
func (s *Scope) root() bool {
	return s.parent == nil
}

// define makes a CTE name visible to this scope and its descendants
func (s *Scope) define(name string) {
	if s.ctes == nil {
		s.ctes = make(map[string]bool)
	}
	s.ctes[strings.ToLower(name)] = true
}

// isCTE reports whether name refers to a CTE visible from s
func (s *Scope) isCTE(name string) bool {
	name = strings.ToLower(name)
	for f := s; f != nil; f = f.parent {
		if f.ctes[name] {
			return true
		}
	}
	return false
}

// bindQualifier makes columns qualified with schema.table resolve to alias
// in this scope and its descendants
func (s *Scope) bindQualifier(qualifier, alias string) {
	if s.qualifiers == nil {
		s.qualifiers = make(map[string]string)
	}
	s.qualifiers[strings.ToLower(qualifier)] = alias
}

// column renders a column reference, rebinding a schema.table qualifier
// whose table was replaced by a sample
func (s *Scope) column(c *query.ColumnRef) string {
	i := strings.LastIndex(c.Column, ".")
	if c.Quoted || i < 0 || !strings.Contains(c.Column[:i], ".") {
		return c.String()
	}
	qualifier := strings.ToLower(c.Column[:i])
	for f := s; f != nil; f = f.parent {
		if alias, ok := f.qualifiers[qualifier]; ok {
			return alias + c.Column[i:]
		}
	}
	return c.String()
}
