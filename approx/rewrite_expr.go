package approx

import (
	"strings"

	"github.com/vegasq/approxq/query"
)

// subquery rewrites a nested query in a fresh child scope
func (e *engine) subquery(q *query.Query, s *Scope, origin Origin) fragment {
	var out fragment
	out.text = "(" + out.absorb(e.rewriteQuery(q, s.child(origin))) + ")"
	return out
}

// value rewrites a value expression. origin is given to any scalar subquery
// found inside it.
func (e *engine) value(expr query.SelectExpression, s *Scope, origin Origin) fragment {
	switch n := expr.(type) {
	case *query.ColumnRef:
		return text(s.column(n))

	case *query.ScalarSubqueryExpr:
		return e.subquery(n.Query, s, origin)

	case *query.FunctionCall:
		var out fragment
		out.text = n.Name + "(" + out.absorb(e.list(n.Args, s, origin)) + ")"
		return out

	case *query.AggregateExpr:
		var out fragment
		arg := "*"
		if n.Arg != nil {
			arg = out.absorb(e.value(n.Arg, s, origin))
		}
		if n.Distinct {
			arg = "DISTINCT " + arg
		}
		out.text = n.Function + "(" + arg + ")"
		return out

	case *query.WindowExpr:
		var out fragment
		args := out.absorb(e.list(n.Args, s, origin))
		if n.Distinct {
			args = "DISTINCT " + args
		}
		out.text = n.Function + "(" + args + ") OVER (" + out.absorb(e.window(n.Window, s, origin)) + ")"
		return out

	case *query.CaseExpr:
		var out fragment
		var sb strings.Builder
		sb.WriteString("CASE")
		for _, when := range n.WhenClauses {
			sb.WriteString(" WHEN ")
			sb.WriteString(out.absorb(e.predicate(when.Condition, s, origin)))
			sb.WriteString(" THEN ")
			sb.WriteString(out.absorb(e.value(when.Result, s, origin)))
		}
		if n.ElseExpr != nil {
			sb.WriteString(" ELSE ")
			sb.WriteString(out.absorb(e.value(n.ElseExpr, s, origin)))
		}
		sb.WriteString(" END")
		out.text = sb.String()
		return out

	case *query.ArithmeticExpr:
		var out fragment
		prec := query.ValuePrecedence(n)
		left := query.ParenthesizeValue(out.absorb(e.value(n.Left, s, origin)), n.Left, prec, false)
		right := query.ParenthesizeValue(out.absorb(e.value(n.Right, s, origin)), n.Right, prec, true)
		out.text = left + " " + n.Operator.String() + " " + right
		return out

	case *query.NegateExpr:
		var out fragment
		operand := out.absorb(e.value(n.Operand, s, origin))
		out.text = query.Negate(operand, n.Operand)
		return out
	}

	// Literals
	return text(expr.String())
}

// list rewrites comma-separated value expressions
func (e *engine) list(exprs []query.SelectExpression, s *Scope, origin Origin) fragment {
	var out fragment
	parts := make([]string, len(exprs))
	for i, expr := range exprs {
		parts[i] = out.absorb(e.value(expr, s, origin))
	}
	out.text = strings.Join(parts, ", ")
	return out
}

// orderBy rewrites a sort specification
func (e *engine) orderBy(items []query.OrderByItem, s *Scope, origin Origin) fragment {
	var out fragment
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = out.absorb(e.value(item.Expr, s, origin))
		if item.Desc {
			parts[i] += " DESC"
		}
	}
	out.text = strings.Join(parts, ", ")
	return out
}

// window rewrites the contents of an OVER clause
func (e *engine) window(spec *query.WindowSpec, s *Scope, origin Origin) fragment {
	var out fragment
	var parts []string
	if len(spec.PartitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+out.absorb(e.list(spec.PartitionBy, s, origin)))
	}
	if len(spec.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+out.absorb(e.orderBy(spec.OrderBy, s, origin)))
	}
	if spec.Frame != nil {
		parts = append(parts, spec.Frame.String())
	}
	out.text = strings.Join(parts, " ")
	return out
}

// predicate rewrites a boolean expression. IN and EXISTS subqueries open a
// scope with the given origin.
func (e *engine) predicate(expr query.Expression, s *Scope, origin Origin) fragment {
	var out fragment

	switch n := expr.(type) {
	case *query.BinaryExpr:
		prec := query.PredicatePrecedence(n)
		left := query.ParenthesizePredicate(out.absorb(e.predicate(n.Left, s, origin)), n.Left, prec)
		right := query.ParenthesizePredicate(out.absorb(e.predicate(n.Right, s, origin)), n.Right, prec)
		out.text = left + " " + n.Operator.String() + " " + right

	case *query.NotExpr:
		inner := out.absorb(e.predicate(n.Expr, s, origin))
		out.text = "NOT " + query.ParenthesizePredicate(inner, n.Expr, query.PredicatePrecedence(n))

	case *query.ComparisonExpr:
		left := out.absorb(e.value(n.Left, s, origin))
		right := out.absorb(e.value(n.Right, s, origin))
		out.text = left + " " + n.Operator.String() + " " + right

	case *query.InExpr:
		left := out.absorb(e.value(n.Expr, s, origin))
		values := out.absorb(e.list(n.Values, s, origin))
		out.text = left + notKeyword(n.Negate) + " IN (" + values + ")"

	case *query.InSubqueryExpr:
		left := out.absorb(e.value(n.Expr, s, origin))
		sub := out.absorb(e.subquery(n.Subquery, s, origin))
		out.text = left + notKeyword(n.Negate) + " IN " + sub

	case *query.LikeExpr:
		left := out.absorb(e.value(n.Expr, s, origin))
		out.text = left + notKeyword(n.Negate) + " LIKE " + query.FormatLiteral(n.Pattern)

	case *query.BetweenExpr:
		left := out.absorb(e.value(n.Expr, s, origin))
		lower := out.absorb(e.value(n.Lower, s, origin))
		upper := out.absorb(e.value(n.Upper, s, origin))
		out.text = left + notKeyword(n.Negate) + " BETWEEN " + lower + " AND " + upper

	case *query.IsNullExpr:
		left := out.absorb(e.value(n.Expr, s, origin))
		if n.Negate {
			out.text = left + " IS NOT NULL"
		} else {
			out.text = left + " IS NULL"
		}

	case *query.ExistsExpr:
		sub := out.absorb(e.subquery(n.Subquery, s, origin))
		out.text = strings.TrimPrefix(notKeyword(n.Negate)+" EXISTS ", " ") + sub

	default:
		out.text = expr.String()
	}

	return out
}

func notKeyword(negate bool) string {
	if negate {
		return " NOT"
	}
	return ""
}
