package query

// Inspect traverses the expression tree rooted at node in depth-first order,
// calling f for each node. Nested queries are not entered: f sees the
// ScalarSubqueryExpr, InSubqueryExpr or ExistsExpr node but not the query
// inside it. If f returns false, the children of node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}

	switch n := node.(type) {
	case *FunctionCall:
		inspectList(n.Args, f)
	case *AggregateExpr:
		if n.Arg != nil {
			Inspect(n.Arg, f)
		}
	case *WindowExpr:
		inspectList(n.Args, f)
		if n.Window != nil {
			inspectList(n.Window.PartitionBy, f)
			for _, item := range n.Window.OrderBy {
				Inspect(item.Expr, f)
			}
		}
	case *CaseExpr:
		for _, when := range n.WhenClauses {
			Inspect(when.Condition, f)
			Inspect(when.Result, f)
		}
		if n.ElseExpr != nil {
			Inspect(n.ElseExpr, f)
		}
	case *ArithmeticExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *NegateExpr:
		Inspect(n.Operand, f)
	case *BinaryExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *NotExpr:
		Inspect(n.Expr, f)
	case *ComparisonExpr:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *InExpr:
		Inspect(n.Expr, f)
		inspectList(n.Values, f)
	case *InSubqueryExpr:
		Inspect(n.Expr, f)
	case *LikeExpr:
		Inspect(n.Expr, f)
	case *BetweenExpr:
		Inspect(n.Expr, f)
		Inspect(n.Lower, f)
		Inspect(n.Upper, f)
	case *IsNullExpr:
		Inspect(n.Expr, f)
	}
}

func inspectList(exprs []SelectExpression, f func(Node) bool) {
	for _, e := range exprs {
		Inspect(e, f)
	}
}
