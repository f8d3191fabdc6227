// Package query parses and formats the SELECT dialect handled by the
// approximate query processor.
//
// The dialect covers:
//   - SELECT [DISTINCT] with expressions and aliases
//   - aggregate functions (COUNT, SUM, AVG, MIN, MAX, STDDEV, VARIANCE)
//     including COUNT(DISTINCT x)
//   - window functions and windowed aggregates (... OVER (PARTITION BY ...
//     ORDER BY ... ROWS|RANGE ...))
//   - arithmetic, string concatenation and CASE expressions
//   - FROM tables (optionally schema-qualified), derived tables and JOINs
//   - WHERE and HAVING predicates: comparisons, IN, LIKE, BETWEEN, IS NULL,
//     EXISTS, IN (SELECT ...) and scalar subqueries
//   - GROUP BY, ORDER BY, LIMIT and OFFSET
//   - Common Table Expressions (WITH, non-recursive)
//
// # Basic Usage
//
//	q, err := query.Parse("SELECT AVG(price) FROM sales.orders WHERE qty > 2")
//	if err != nil {
//	    var se *query.SyntaxError
//	    if errors.As(err, &se) {
//	        log.Printf("bad query near position %d", se.Pos)
//	    }
//	    return err
//	}
//	fmt.Println(q.From.Name) // sales.orders
//	fmt.Println(q)           // SELECT AVG(price) FROM sales.orders WHERE qty > 2
//
// # Walking Expressions
//
// Inspect visits an expression tree without entering nested queries, which
// is how callers find the aggregates of one query level:
//
//	for _, item := range q.SelectList {
//	    query.Inspect(item.Expr, func(n query.Node) bool {
//	        if agg, ok := n.(*query.AggregateExpr); ok {
//	            fmt.Println(agg.Function)
//	        }
//	        return true
//	    })
//	}
//
// # Formatting
//
// Every node renders back to SQL through String. Output is a single line,
// keywords upper-cased, with parentheses only where precedence needs them;
// parsing the output again yields the same text.
//
// String literals follow standard SQL: a doubled quote is the only escape
// and a backslash is an ordinary character. Quoted identifiers keep their
// quotes when printed, including aliases and CTE names.
//
// # Limits
//
// Parse rejects input longer than MaxQueryLength, with more than MaxTokens
// tokens or nested deeper than MaxExpressionDepth. All parse failures are
// returned as *SyntaxError and unwrap to the underlying cause, so
// errors.Is(err, query.ErrExpressionTooDeep) works as expected.
package query
