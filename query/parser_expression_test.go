package query

import (
	"testing"
)

func TestParser_WhereClause(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "simple equality", query: "SELECT * FROM t WHERE region = 'west'"},
		{name: "not equal", query: "SELECT * FROM t WHERE qty <> 0"},
		{name: "AND condition", query: "SELECT * FROM t WHERE qty > 3 AND price < 10.5"},
		{name: "OR condition", query: "SELECT * FROM t WHERE qty > 3 OR price < 10"},
		{name: "parenthesized group", query: "SELECT * FROM t WHERE (qty > 3 OR price < 10) AND region = 'x'"},
		{name: "parenthesized value", query: "SELECT * FROM t WHERE (price + tax) * 2 > 100"},
		{name: "nested parentheses", query: "SELECT * FROM t WHERE ((price)) > 1"},
		{name: "NOT prefix", query: "SELECT * FROM t WHERE NOT qty > 3"},
		{name: "value on both sides", query: "SELECT * FROM t WHERE price * qty >= discount + 5"},
		{name: "function operand", query: "SELECT * FROM t WHERE LOWER(region) = 'west'"},
		{name: "negative literal", query: "SELECT * FROM t WHERE delta > -5"},
		{name: "bare column", query: "SELECT * FROM t WHERE active", wantErr: true},
		{name: "missing right side", query: "SELECT * FROM t WHERE qty =", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && q.Filter == nil {
				t.Errorf("Parse() Filter = nil, want predicate")
			}
		})
	}
}

func TestParser_OperatorPrecedence(t *testing.T) {
	q, err := Parse("SELECT * FROM t WHERE a = 1 OR b = 2 AND c = 3")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// AND binds tighter: a = 1 OR (b = 2 AND c = 3)
	or, ok := q.Filter.(*BinaryExpr)
	if !ok || or.Operator != TokenOr {
		t.Fatalf("top-level = %#v, want OR", q.Filter)
	}
	and, ok := or.Right.(*BinaryExpr)
	if !ok || and.Operator != TokenAnd {
		t.Errorf("right side = %#v, want AND", or.Right)
	}
}

func TestParser_ArithmeticPrecedence(t *testing.T) {
	q, err := Parse("SELECT a + b * c - d FROM t")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// ((a + (b * c)) - d)
	sub, ok := q.SelectList[0].Expr.(*ArithmeticExpr)
	if !ok || sub.Operator != TokenMinus {
		t.Fatalf("top-level = %#v, want -", q.SelectList[0].Expr)
	}
	add, ok := sub.Left.(*ArithmeticExpr)
	if !ok || add.Operator != TokenPlus {
		t.Fatalf("left = %#v, want +", sub.Left)
	}
	mul, ok := add.Right.(*ArithmeticExpr)
	if !ok || mul.Operator != TokenStar {
		t.Errorf("a + ? = %#v, want *", add.Right)
	}
}

func TestParser_Literals(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  interface{}
	}{
		{name: "integer", query: "SELECT * FROM t WHERE a = 42", want: int64(42)},
		{name: "negative integer", query: "SELECT * FROM t WHERE a = -42", want: int64(-42)},
		{name: "float", query: "SELECT * FROM t WHERE a = 2.5", want: 2.5},
		{name: "string", query: "SELECT * FROM t WHERE a = 'x'", want: "x"},
		{name: "boolean", query: "SELECT * FROM t WHERE a = TRUE", want: true},
		{name: "null", query: "SELECT * FROM t WHERE a = NULL", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			cmp, ok := q.Filter.(*ComparisonExpr)
			if !ok {
				t.Fatalf("expected *ComparisonExpr, got %T", q.Filter)
			}
			lit, ok := cmp.Right.(*LiteralExpr)
			if !ok {
				t.Fatalf("expected *LiteralExpr, got %T", cmp.Right)
			}
			if lit.Value != tt.want {
				t.Errorf("literal = %#v, want %#v", lit.Value, tt.want)
			}
		})
	}
}

func TestParser_NegatedColumn(t *testing.T) {
	q, err := Parse("SELECT -price FROM t")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := q.SelectList[0].Expr.(*NegateExpr); !ok {
		t.Errorf("expected *NegateExpr, got %T", q.SelectList[0].Expr)
	}
}

func TestParser_InOperator(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantValues int
		wantNegate bool
	}{
		{name: "IN strings", query: "SELECT * FROM t WHERE region IN ('a', 'b', 'c')", wantValues: 3},
		{name: "IN numbers", query: "SELECT * FROM t WHERE qty IN (1, 2)", wantValues: 2},
		{name: "NOT IN", query: "SELECT * FROM t WHERE qty NOT IN (1)", wantValues: 1, wantNegate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			in, ok := q.Filter.(*InExpr)
			if !ok {
				t.Fatalf("expected *InExpr, got %T", q.Filter)
			}
			if len(in.Values) != tt.wantValues {
				t.Errorf("len(Values) = %d, want %d", len(in.Values), tt.wantValues)
			}
			if in.Negate != tt.wantNegate {
				t.Errorf("Negate = %v, want %v", in.Negate, tt.wantNegate)
			}
		})
	}
}

func TestParser_LikeOperator(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPattern string
		wantNegate  bool
		wantErr     bool
	}{
		{name: "LIKE", query: "SELECT * FROM t WHERE name LIKE 'a%'", wantPattern: "a%"},
		{name: "NOT LIKE", query: "SELECT * FROM t WHERE name NOT LIKE '%z'", wantPattern: "%z", wantNegate: true},
		{name: "non-string pattern", query: "SELECT * FROM t WHERE name LIKE 5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			like, ok := q.Filter.(*LikeExpr)
			if !ok {
				t.Fatalf("expected *LikeExpr, got %T", q.Filter)
			}
			if like.Pattern != tt.wantPattern || like.Negate != tt.wantNegate {
				t.Errorf("got pattern %q negate %v, want %q %v", like.Pattern, like.Negate, tt.wantPattern, tt.wantNegate)
			}
		})
	}
}

func TestParser_BetweenOperator(t *testing.T) {
	q, err := Parse("SELECT * FROM t WHERE qty NOT BETWEEN 1 AND 10 AND price > 0")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	and, ok := q.Filter.(*BinaryExpr)
	if !ok || and.Operator != TokenAnd {
		t.Fatalf("top-level = %#v, want AND", q.Filter)
	}
	between, ok := and.Left.(*BetweenExpr)
	if !ok || !between.Negate {
		t.Errorf("left = %#v, want NOT BETWEEN", and.Left)
	}
}

func TestParser_IsNullOperator(t *testing.T) {
	tests := []struct {
		query      string
		wantNegate bool
	}{
		{query: "SELECT * FROM t WHERE a IS NULL", wantNegate: false},
		{query: "SELECT * FROM t WHERE a IS NOT NULL", wantNegate: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			isNull, ok := q.Filter.(*IsNullExpr)
			if !ok || isNull.Negate != tt.wantNegate {
				t.Errorf("Filter = %#v, want IS NULL negate %v", q.Filter, tt.wantNegate)
			}
		})
	}
}

func TestParser_CaseExpression(t *testing.T) {
	q, err := Parse("SELECT CASE WHEN qty > 10 THEN 'bulk' WHEN qty > 1 THEN 'multi' ELSE 'single' END AS kind FROM t")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	c, ok := q.SelectList[0].Expr.(*CaseExpr)
	if !ok {
		t.Fatalf("expected *CaseExpr, got %T", q.SelectList[0].Expr)
	}
	if len(c.WhenClauses) != 2 || c.ElseExpr == nil {
		t.Errorf("CASE = %#v, want 2 WHEN clauses and ELSE", c)
	}
	if q.SelectList[0].Alias != "kind" {
		t.Errorf("alias = %q, want kind", q.SelectList[0].Alias)
	}

	if _, err := Parse("SELECT CASE ELSE 1 END FROM t"); err == nil {
		t.Errorf("Parse() expected error for CASE without WHEN")
	}
}
