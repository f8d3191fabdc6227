package query

import (
	"strconv"
	"strings"
)

// Precedence levels for value expressions. Higher binds tighter.
const (
	precAdditive       = 1 // + - ||
	precMultiplicative = 2 // * / %
	precUnary          = 3
	precPrimary        = 4
)

// Precedence levels for boolean expressions
const (
	precOr        = 1
	precAnd       = 2
	precNot       = 3
	precPredicate = 4
)

// ValuePrecedence returns the binding strength of a value expression
func ValuePrecedence(e SelectExpression) int {
	switch e := e.(type) {
	case *ArithmeticExpr:
		switch e.Operator {
		case TokenStar, TokenSlash, TokenPercent:
			return precMultiplicative
		default:
			return precAdditive
		}
	case *NegateExpr:
		return precUnary
	}
	return precPrimary
}

// PredicatePrecedence returns the binding strength of a boolean expression
func PredicatePrecedence(e Expression) int {
	switch e := e.(type) {
	case *BinaryExpr:
		if e.Operator == TokenOr {
			return precOr
		}
		return precAnd
	case *NotExpr:
		return precNot
	}
	return precPredicate
}

// ParenthesizeValue wraps text in parentheses when child binds looser than
// its parent position requires. right marks the right operand of a left
// associative operator, which also needs parentheses at equal precedence.
func ParenthesizeValue(text string, child SelectExpression, parentPrec int, right bool) string {
	prec := ValuePrecedence(child)
	if prec < parentPrec || (right && prec == parentPrec) {
		return "(" + text + ")"
	}
	return text
}

// ParenthesizePredicate wraps text in parentheses when child binds looser
// than parentPrec
func ParenthesizePredicate(text string, child Expression, parentPrec int) string {
	if PredicatePrecedence(child) < parentPrec {
		return "(" + text + ")"
	}
	return text
}

// QuoteIdent renders a quoted identifier, doubling embedded quotes
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// FormatIdent renders an alias or CTE name as written
func FormatIdent(name string, quoted bool) string {
	if quoted {
		return QuoteIdent(name)
	}
	return name
}

// Negate renders unary minus over the operand's text. An operand text that
// already starts with a minus is parenthesized; "--" would open a comment.
func Negate(text string, operand SelectExpression) string {
	text = ParenthesizeValue(text, operand, precUnary, false)
	if strings.HasPrefix(text, "-") {
		text = "(" + text + ")"
	}
	return "-" + text
}

// FormatLiteral renders a literal value as SQL
func FormatLiteral(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	return "NULL"
}

// String renders the table name, quoting it when it was quoted in the query
func (t TableName) String() string {
	if t.Quoted {
		return QuoteIdent(t.Name)
	}
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// String returns the SQL keywords introducing the join
func (j JoinType) String() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	case JoinCross:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

// String renders the frame clause, e.g. ROWS BETWEEN 2 PRECEDING AND CURRENT ROW
func (f *WindowFrame) String() string {
	kind := "ROWS"
	if f.Type == FrameTypeRange {
		kind = "RANGE"
	}
	if !f.Between {
		return kind + " " + f.Start.String()
	}
	return kind + " BETWEEN " + f.Start.String() + " AND " + f.End.String()
}

// String renders a single frame bound
func (b FrameBound) String() string {
	switch b.Type {
	case BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case BoundOffsetPreceding:
		return strconv.FormatInt(b.Offset, 10) + " PRECEDING"
	case BoundOffsetFollowing:
		return strconv.FormatInt(b.Offset, 10) + " FOLLOWING"
	case BoundUnboundedFollowing:
		return "UNBOUNDED FOLLOWING"
	default:
		return "CURRENT ROW"
	}
}

// String renders the query as a single line of SQL
func (q *Query) String() string {
	var sb strings.Builder

	if len(q.CTEs) > 0 {
		sb.WriteString("WITH ")
		for i, cte := range q.CTEs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(FormatIdent(cte.Name, cte.Quoted))
			sb.WriteString(" AS (")
			sb.WriteString(cte.Query.String())
			sb.WriteString(")")
		}
		sb.WriteString(" ")
	}

	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, item := range q.SelectList {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(item.String())
	}

	sb.WriteString(" FROM ")
	sb.WriteString(q.From.String())

	for _, join := range q.Joins {
		sb.WriteString(" ")
		sb.WriteString(join.Type.String())
		sb.WriteString(" ")
		sb.WriteString(join.Source.String())
		if join.Condition != nil {
			sb.WriteString(" ON ")
			sb.WriteString(join.Condition.String())
		}
	}

	if q.Filter != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(q.Filter.String())
	}

	if len(q.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, col := range q.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(col.String())
		}
	}

	if q.Having != nil {
		sb.WriteString(" HAVING ")
		sb.WriteString(q.Having.String())
	}

	if len(q.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(formatOrderBy(q.OrderBy))
	}

	if q.Limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(*q.Limit, 10))
	}
	if q.Offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.FormatInt(*q.Offset, 10))
	}

	return sb.String()
}

// String renders the source with its alias
func (t TableRef) String() string {
	var text string
	if t.Subquery != nil {
		text = "(" + t.Subquery.String() + ")"
	} else {
		text = t.Name.String()
	}
	if t.Alias != "" {
		text += " AS " + FormatIdent(t.Alias, t.AliasQuoted)
	}
	return text
}

// String renders the select item with its alias
func (s SelectItem) String() string {
	if s.Alias != "" {
		return s.Expr.String() + " AS " + FormatIdent(s.Alias, s.AliasQuoted)
	}
	return s.Expr.String()
}

// formatOrderBy renders a sort specification
func formatOrderBy(items []OrderByItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Expr.String()
		if item.Desc {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

// formatList renders comma-separated value expressions
func formatList(exprs []SelectExpression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func (c *ColumnRef) String() string {
	if c.Quoted {
		return QuoteIdent(c.Column)
	}
	return c.Column
}

func (l *LiteralExpr) String() string {
	return FormatLiteral(l.Value)
}

func (f *FunctionCall) String() string {
	return f.Name + "(" + formatList(f.Args) + ")"
}

func (a *AggregateExpr) String() string {
	arg := "*"
	if a.Arg != nil {
		arg = a.Arg.String()
	}
	if a.Distinct {
		arg = "DISTINCT " + arg
	}
	return a.Function + "(" + arg + ")"
}

func (w *WindowExpr) String() string {
	args := formatList(w.Args)
	if w.Distinct {
		args = "DISTINCT " + args
	}
	return w.Function + "(" + args + ") OVER (" + w.Window.String() + ")"
}

// String renders the contents of an OVER clause without parentheses
func (s *WindowSpec) String() string {
	var parts []string
	if len(s.PartitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+formatList(s.PartitionBy))
	}
	if len(s.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+formatOrderBy(s.OrderBy))
	}
	if s.Frame != nil {
		parts = append(parts, s.Frame.String())
	}
	return strings.Join(parts, " ")
}

func (c *CaseExpr) String() string {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, when := range c.WhenClauses {
		sb.WriteString(" WHEN ")
		sb.WriteString(when.Condition.String())
		sb.WriteString(" THEN ")
		sb.WriteString(when.Result.String())
	}
	if c.ElseExpr != nil {
		sb.WriteString(" ELSE ")
		sb.WriteString(c.ElseExpr.String())
	}
	sb.WriteString(" END")
	return sb.String()
}

func (a *ArithmeticExpr) String() string {
	prec := ValuePrecedence(a)
	left := ParenthesizeValue(a.Left.String(), a.Left, prec, false)
	right := ParenthesizeValue(a.Right.String(), a.Right, prec, true)
	return left + " " + a.Operator.String() + " " + right
}

func (n *NegateExpr) String() string {
	return Negate(n.Operand.String(), n.Operand)
}

func (s *ScalarSubqueryExpr) String() string {
	return "(" + s.Query.String() + ")"
}

func (b *BinaryExpr) String() string {
	prec := PredicatePrecedence(b)
	left := ParenthesizePredicate(b.Left.String(), b.Left, prec)
	right := ParenthesizePredicate(b.Right.String(), b.Right, prec)
	return left + " " + b.Operator.String() + " " + right
}

func (n *NotExpr) String() string {
	return "NOT " + ParenthesizePredicate(n.Expr.String(), n.Expr, precNot)
}

func (c *ComparisonExpr) String() string {
	return c.Left.String() + " " + c.Operator.String() + " " + c.Right.String()
}

func (i *InExpr) String() string {
	return i.Expr.String() + negated(i.Negate, " NOT IN (", " IN (") + formatList(i.Values) + ")"
}

func (i *InSubqueryExpr) String() string {
	return i.Expr.String() + negated(i.Negate, " NOT IN (", " IN (") + i.Subquery.String() + ")"
}

func (l *LikeExpr) String() string {
	return l.Expr.String() + negated(l.Negate, " NOT LIKE ", " LIKE ") + FormatLiteral(l.Pattern)
}

func (b *BetweenExpr) String() string {
	return b.Expr.String() + negated(b.Negate, " NOT BETWEEN ", " BETWEEN ") +
		b.Lower.String() + " AND " + b.Upper.String()
}

func (i *IsNullExpr) String() string {
	return i.Expr.String() + negated(i.Negate, " IS NOT NULL", " IS NULL")
}

func (e *ExistsExpr) String() string {
	return negated(e.Negate, "NOT EXISTS (", "EXISTS (") + e.Subquery.String() + ")"
}

// negated picks the spelling of an operator with an optional NOT
func negated(negate bool, yes, no string) string {
	if negate {
		return yes
	}
	return no
}
