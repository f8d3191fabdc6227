package approx

import (
	"strconv"
	"strings"

	"github.com/vegasq/approxq/query"
)

// Catalog resolves an original table to the sample table standing in for it
type Catalog interface {
	Lookup(original TableUniqueName) (TableUniqueName, bool)
}

// CatalogFunc adapts a function to the Catalog interface
type CatalogFunc func(original TableUniqueName) (TableUniqueName, bool)

// Lookup calls f
func (f CatalogFunc) Lookup(original TableUniqueName) (TableUniqueName, bool) {
	return f(original)
}

// Rewrite is the outcome of rewriting one query against sample tables
type Rewrite struct {
	SQL         string
	Columns     AggregateColumnIndicator
	Samples     SampleTableMapping
	Scopes      []ScopeAnnotation // innermost first, outermost last
	Keyset      []query.ColumnRef
	Diagnostics []Diagnostic
}

// Err returns a *RewriteError when the policy refused part of the query
func (r *Rewrite) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	return &RewriteError{Diagnostics: r.Diagnostics}
}

// fragment is the rewritten text of one subtree together with everything
// the subtree's nested queries reported.
type fragment struct {
	text        string
	samples     SampleTableMapping
	diagnostics []Diagnostic
	scopes      []ScopeAnnotation
	propagate   bool // a nested scope handed multiplicity upward
}

func text(s string) fragment {
	return fragment{text: s}
}

// absorb merges what child reported and returns its text
func (f *fragment) absorb(child fragment) string {
	if len(child.samples) > 0 {
		if f.samples == nil {
			f.samples = make(SampleTableMapping)
		}
		f.samples.merge(child.samples)
	}
	f.diagnostics = append(f.diagnostics, child.diagnostics...)
	f.scopes = append(f.scopes, child.scopes...)
	f.propagate = f.propagate || child.propagate
	return child.text
}

// engine rewrites queries under one policy. It holds no per-query state.
type engine struct {
	catalog       Catalog
	policy        Policy
	defaultSchema string
}

// rewrite substitutes sample tables throughout q
func (e *engine) rewrite(q *query.Query) *Rewrite {
	out := e.rewriteQuery(q, newRootScope())

	rw := &Rewrite{
		SQL:         out.text,
		Columns:     indicate(q.SelectList),
		Samples:     out.samples,
		Scopes:      out.scopes,
		Diagnostics: out.diagnostics,
	}
	if rw.Samples == nil {
		rw.Samples = SampleTableMapping{}
	}
	if n := len(rw.Scopes); n > 0 {
		rw.Keyset = rw.Scopes[n-1].Keyset
	}
	return rw
}

// rewriteQuery rewrites one query level in its own scope frame and closes
// the scope once every nested query has reported.
func (e *engine) rewriteQuery(q *query.Query, s *Scope) fragment {
	var body fragment
	var sb strings.Builder

	if len(q.CTEs) > 0 {
		sb.WriteString("WITH ")
		for i, cte := range q.CTEs {
			if i > 0 {
				sb.WriteString(", ")
			}
			// Earlier CTEs are visible to later bodies; a body never sees itself
			inner := body.absorb(e.rewriteQuery(cte.Query, s.child(OriginCTE)))
			s.define(cte.Name)
			sb.WriteString(query.FormatIdent(cte.Name, cte.Quoted))
			sb.WriteString(" AS (")
			sb.WriteString(inner)
			sb.WriteString(")")
		}
		sb.WriteString(" ")
	}

	// Column references may name a source before its FROM clause is reached
	e.bindQualifiers(q, s)

	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, item := range q.SelectList {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(body.absorb(e.value(item.Expr, s, OriginSelect)))
		sb.WriteString(aliasSuffix(item.Alias, item.AliasQuoted))
	}

	sampled := false

	sb.WriteString(" FROM ")
	from, direct := e.source(q.From, s, OriginFrom)
	sampled = sampled || direct
	sb.WriteString(body.absorb(from))

	for _, join := range q.Joins {
		sb.WriteString(" ")
		sb.WriteString(join.Type.String())
		sb.WriteString(" ")
		src, direct := e.source(join.Source, s, OriginJoin)
		sampled = sampled || direct
		sb.WriteString(body.absorb(src))
		if join.Condition != nil {
			sb.WriteString(" ON ")
			sb.WriteString(body.absorb(e.predicate(join.Condition, s, OriginOn)))
		}
	}

	if q.Filter != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(body.absorb(e.predicate(q.Filter, s, OriginWhere)))
	}

	if len(q.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, col := range q.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.column(col))
		}
	}

	if q.Having != nil {
		sb.WriteString(" HAVING ")
		sb.WriteString(body.absorb(e.predicate(q.Having, s, OriginHaving)))
	}

	if len(q.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(body.absorb(e.orderBy(q.OrderBy, s, OriginOrderBy)))
	}

	if q.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(*q.Limit, 10))
	}
	if q.Offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.FormatInt(*q.Offset, 10))
	}

	annotation, diags := e.closeScope(q, s, sampled || body.propagate)

	return fragment{
		text:        sb.String(),
		samples:     body.samples,
		diagnostics: append(body.diagnostics, diags...),
		scopes:      append(body.scopes, annotation),
		propagate:   annotation.Decision == DecisionPropagated,
	}
}

// closeScope settles the multiplicity of a scope and asks the policy to
// review it. carrying is set when the scope reads a sample table directly
// or a nested scope propagated multiplicity into it.
func (e *engine) closeScope(q *query.Query, s *Scope, carrying bool) (ScopeAnnotation, []Diagnostic) {
	view := inspectScope(q)
	view.Depth = s.depth
	view.Origin = s.origin
	view.Sampled = carrying && e.policy.TracksMultiplicity()

	annotation := ScopeAnnotation{
		Depth:              s.depth,
		Origin:             s.origin,
		MultiplicityActive: view.Sampled,
	}

	switch {
	case !view.Sampled:
		annotation.Decision = DecisionNone
	case view.Aggregates:
		annotation.Decision = DecisionConsumed
	case !s.root():
		annotation.Decision = DecisionPropagated
	default:
		annotation.Decision = DecisionDropped
	}

	if s.root() && !s.underPredicate && len(q.GroupBy) > 0 {
		annotation.Keyset = make([]query.ColumnRef, len(q.GroupBy))
		for i, col := range q.GroupBy {
			annotation.Keyset[i] = *col
		}
	}

	return annotation, e.policy.Review(view)
}

// inspectScope collects the aggregation facts of one query level. Nested
// queries are not entered.
func inspectScope(q *query.Query) ScopeView {
	view := ScopeView{
		Aggregates:   len(q.GroupBy) > 0,
		DistinctRows: q.Distinct,
		Limited:      q.Limit != nil || q.Offset != nil,
	}

	visit := func(n query.Node) bool {
		switch n := n.(type) {
		case *query.AggregateExpr:
			view.Aggregates = true
			if n.Distinct {
				view.Distinct = append(view.Distinct, n)
			}
		case *query.WindowExpr:
			view.Windows = append(view.Windows, n)
			if n.Distinct {
				view.Distinct = append(view.Distinct, n)
			}
		}
		return true
	}

	for _, item := range q.SelectList {
		query.Inspect(item.Expr, visit)
	}
	if q.Having != nil {
		query.Inspect(q.Having, visit)
	}
	for _, item := range q.OrderBy {
		query.Inspect(item.Expr, visit)
	}

	return view
}

// sampleFor looks up the sample standing in for a named source. CTE
// references and derived tables never resolve.
func (e *engine) sampleFor(ref query.TableRef, s *Scope) (original, sample TableUniqueName, ok bool) {
	if ref.IsSubquery() || (ref.Name.Schema == "" && s.isCTE(ref.Name.Name)) {
		return original, sample, false
	}
	original = Canonical(ref.Name, e.defaultSchema)
	sample, ok = e.catalog.Lookup(original)
	return original, sample, ok
}

// bindQualifiers records, for every schema-qualified source of q that will
// be replaced without a user alias, the alias its sample takes. Columns
// qualified as schema.table.column are printed against that alias.
func (e *engine) bindQualifiers(q *query.Query, s *Scope) {
	refs := []query.TableRef{q.From}
	for _, join := range q.Joins {
		refs = append(refs, join.Source)
	}
	for _, ref := range refs {
		if ref.Alias != "" || ref.Name.Schema == "" {
			continue
		}
		if _, _, ok := e.sampleFor(ref, s); ok {
			s.bindQualifier(ref.Name.Schema+"."+ref.Name.Name, ref.Name.Name)
		}
	}
}

// source rewrites a FROM or JOIN source. The flag reports whether a sample
// table was substituted directly at this level.
func (e *engine) source(ref query.TableRef, s *Scope, origin Origin) (fragment, bool) {
	if ref.IsSubquery() {
		var out fragment
		inner := out.absorb(e.rewriteQuery(ref.Subquery, s.child(origin)))
		out.text = "(" + inner + ")" + aliasSuffix(ref.Alias, ref.AliasQuoted)
		return out, false
	}

	original, sample, ok := e.sampleFor(ref, s)
	if !ok {
		return text(ref.String()), false
	}

	// Without a user alias the sample takes the original table name, so
	// qualified column references keep resolving.
	alias, quoted := ref.Alias, ref.AliasQuoted
	if alias == "" {
		alias, quoted = ref.Name.Name, ref.Name.Quoted
	}

	return fragment{
		text:    sample.SQL() + aliasSuffix(alias, quoted),
		samples: SampleTableMapping{original: sample},
	}, true
}

func aliasSuffix(alias string, quoted bool) string {
	if alias == "" {
		return ""
	}
	return " AS " + query.FormatIdent(alias, quoted)
}
