package query

import "strings"

// TokenType represents the type of a token
type TokenType int

const (
	// Keywords
	TokenSelect TokenType = iota
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenAs
	TokenGroup
	TokenBy
	TokenHaving
	TokenOrder
	TokenAsc
	TokenDesc
	TokenLimit
	TokenOffset
	TokenIn
	TokenLike
	TokenBetween
	TokenIs
	TokenNot
	TokenNull
	TokenDistinct
	TokenCase
	TokenWhen
	TokenThen
	TokenElse
	TokenEnd
	TokenOver
	TokenPartition
	TokenRows
	TokenRange
	TokenWith
	TokenRecursive
	TokenExists
	TokenJoin
	TokenInner
	TokenLeft
	TokenRight
	TokenFull
	TokenOuter
	TokenCross
	TokenOn

	// Comparison operators
	TokenEqual        // =
	TokenNotEqual     // != or <>
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=

	// Arithmetic operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // * (also the all-columns wildcard)
	TokenSlash   // /
	TokenPercent // %
	TokenConcat  // ||

	// Literals
	TokenString
	TokenNumber
	TokenIdent
	TokenQuotedIdent
	TokenBool

	// Delimiters
	TokenComma      // ,
	TokenLeftParen  // (
	TokenRightParen // )
	TokenSemicolon  // ;

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenEqual:        "=",
	TokenNotEqual:     "<>",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenConcat:       "||",
	TokenAnd:          "AND",
	TokenOr:           "OR",
	TokenString:       "string",
	TokenNumber:       "number",
	TokenIdent:        "identifier",
	TokenQuotedIdent:  "quoted identifier",
	TokenBool:         "boolean",
	TokenComma:        "','",
	TokenLeftParen:    "'('",
	TokenRightParen:   "')'",
	TokenSemicolon:    "';'",
	TokenEOF:          "end of query",
	TokenError:        "invalid character",
}

// String returns the SQL spelling of operators and a readable name for other
// token types. Keywords render upper-cased.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	for kw, typ := range keywords {
		if typ == t && typ != TokenBool {
			return strings.ToUpper(kw)
		}
	}
	return "token"
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the query text
}

// Node is implemented by every expression in the AST. String renders the
// node back to SQL.
type Node interface {
	String() string
}

// Query represents a parsed SELECT statement
type Query struct {
	CTEs       []CTE         // WITH clause CTEs
	Distinct   bool          // DISTINCT modifier
	SelectList []SelectItem  // Output expressions in order
	From       TableRef      // Table, CTE reference or derived table
	Joins      []Join        // JOIN clauses
	Filter     Expression    // WHERE predicate
	GroupBy    []*ColumnRef  // Grouping columns
	Having     Expression    // Post-aggregation filter
	OrderBy    []OrderByItem // Sort specification
	Limit      *int64        // Row limit
	Offset     *int64        // Row offset
}

// TableName is a possibly schema-qualified table identifier as written in
// the query.
type TableName struct {
	Schema string
	Name   string
	Quoted bool // written as a quoted identifier
}

// TableRef is a source in FROM or JOIN: either a named table (or CTE) or a
// derived table.
type TableRef struct {
	Name        TableName // Set for table and CTE references
	Subquery    *Query    // Set for derived tables
	Alias       string    // Optional alias
	AliasQuoted bool      // alias written as a quoted identifier
}

// IsSubquery reports whether the reference is a derived table
func (t TableRef) IsSubquery() bool {
	return t.Subquery != nil
}

// JoinType represents the type of join operation
type JoinType int

const (
	JoinInner JoinType = iota // INNER JOIN (default)
	JoinLeft                  // LEFT JOIN / LEFT OUTER JOIN
	JoinRight                 // RIGHT JOIN / RIGHT OUTER JOIN
	JoinFull                  // FULL JOIN / FULL OUTER JOIN
	JoinCross                 // CROSS JOIN
)

// Join represents a JOIN clause
type Join struct {
	Type      JoinType   // Type of join (INNER, LEFT, RIGHT, FULL, CROSS)
	Source    TableRef   // Joined table or derived table
	Condition Expression // ON clause condition (nil for CROSS JOIN)
}

// CTE represents a Common Table Expression (WITH clause)
type CTE struct {
	Name   string // CTE name
	Quoted bool   // name written as a quoted identifier
	Query  *Query // Subquery defining the CTE
}

// OrderByItem represents a sort key
type OrderByItem struct {
	Expr SelectExpression // Column, alias or expression
	Desc bool             // DESC vs ASC (default)
}

// SelectItem represents a column or expression in the SELECT list
type SelectItem struct {
	Expr        SelectExpression // Column, function, or expression
	Alias       string           // Optional alias (AS name)
	AliasQuoted bool             // alias written as a quoted identifier
}

// SelectExpression is a value expression: it can appear in a SELECT list,
// as a function argument or as a comparison operand.
type SelectExpression interface {
	Node
	selectExpression()
}

// Expression is a boolean expression (WHERE, HAVING, ON, CASE WHEN)
type Expression interface {
	Node
	expression()
}

// ColumnRef references a column, a qualified column (alias.col) or the
// wildcards * and alias.*
type ColumnRef struct {
	Column string
	Quoted bool
}

// LiteralExpr represents a literal value: int64, float64, string, bool or
// nil for NULL
type LiteralExpr struct {
	Value interface{}
}

// FunctionCall represents a scalar function invocation
type FunctionCall struct {
	Name string
	Args []SelectExpression
}

// AggregateExpr represents an aggregate function such as COUNT, SUM, AVG,
// MIN, MAX, STDDEV or VARIANCE
type AggregateExpr struct {
	Function string           // Upper-cased function name
	Arg      SelectExpression // Argument expression (nil for COUNT(*))
	Distinct bool             // DISTINCT modifier
}

// WindowExpr represents a function evaluated over a window: ranking
// functions (ROW_NUMBER, RANK, ...) and aggregates followed by OVER
type WindowExpr struct {
	Function string             // Upper-cased function name
	Args     []SelectExpression // Function arguments (* is a ColumnRef)
	Distinct bool               // DISTINCT modifier on a windowed aggregate
	Window   *WindowSpec        // Window specification
}

// WindowSpec specifies the window behavior
type WindowSpec struct {
	PartitionBy []SelectExpression // PARTITION BY expressions
	OrderBy     []OrderByItem      // ORDER BY specification
	Frame       *WindowFrame       // Frame specification (ROWS/RANGE)
}

// WindowFrame specifies the window frame
type WindowFrame struct {
	Type    FrameType  // ROWS or RANGE
	Start   FrameBound // Frame start
	End     FrameBound // Frame end
	Between bool       // written with BETWEEN ... AND ...
}

// FrameType represents the type of window frame
type FrameType int

const (
	FrameTypeRows FrameType = iota
	FrameTypeRange
)

// FrameBound represents a frame boundary
type FrameBound struct {
	Type   BoundType // UNBOUNDED, CURRENT, OFFSET
	Offset int64     // Offset for OFFSET bound type
}

// BoundType represents the type of frame bound
type BoundType int

const (
	BoundUnboundedPreceding BoundType = iota
	BoundOffsetPreceding
	BoundCurrentRow
	BoundOffsetFollowing
	BoundUnboundedFollowing
)

// CaseExpr represents a CASE expression
type CaseExpr struct {
	WhenClauses []WhenClause     // WHEN conditions and their results
	ElseExpr    SelectExpression // ELSE result (optional)
}

// WhenClause represents a single WHEN condition and result
type WhenClause struct {
	Condition Expression       // WHEN condition
	Result    SelectExpression // THEN result
}

// ArithmeticExpr represents a binary arithmetic or concatenation expression
type ArithmeticExpr struct {
	Left     SelectExpression
	Operator TokenType // TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenConcat
	Right    SelectExpression
}

// NegateExpr represents unary minus applied to a non-literal operand
type NegateExpr struct {
	Operand SelectExpression
}

// ScalarSubqueryExpr represents a subquery used as a value
type ScalarSubqueryExpr struct {
	Query *Query
}

// BinaryExpr represents a binary boolean expression (AND/OR)
type BinaryExpr struct {
	Left     Expression
	Operator TokenType // TokenAnd or TokenOr
	Right    Expression
}

// NotExpr negates a boolean expression
type NotExpr struct {
	Expr Expression
}

// ComparisonExpr compares two value expressions (a op b)
type ComparisonExpr struct {
	Left     SelectExpression
	Operator TokenType
	Right    SelectExpression
}

// InExpr represents an IN list (expr IN (v1, v2, ...))
type InExpr struct {
	Expr   SelectExpression
	Values []SelectExpression
	Negate bool // NOT IN
}

// InSubqueryExpr represents an IN expression with a subquery
type InSubqueryExpr struct {
	Expr     SelectExpression
	Subquery *Query
	Negate   bool // NOT IN
}

// LikeExpr represents a LIKE expression (expr LIKE 'pattern')
type LikeExpr struct {
	Expr    SelectExpression
	Pattern string
	Negate  bool // NOT LIKE
}

// BetweenExpr represents a BETWEEN expression (expr BETWEEN lower AND upper)
type BetweenExpr struct {
	Expr   SelectExpression
	Lower  SelectExpression
	Upper  SelectExpression
	Negate bool // NOT BETWEEN
}

// IsNullExpr represents an IS NULL expression (expr IS NULL / expr IS NOT NULL)
type IsNullExpr struct {
	Expr   SelectExpression
	Negate bool // IS NOT NULL
}

// ExistsExpr represents an EXISTS expression
type ExistsExpr struct {
	Subquery *Query
	Negate   bool // NOT EXISTS
}

func (*ColumnRef) selectExpression()          {}
func (*LiteralExpr) selectExpression()        {}
func (*FunctionCall) selectExpression()       {}
func (*AggregateExpr) selectExpression()      {}
func (*WindowExpr) selectExpression()         {}
func (*CaseExpr) selectExpression()           {}
func (*ArithmeticExpr) selectExpression()     {}
func (*NegateExpr) selectExpression()         {}
func (*ScalarSubqueryExpr) selectExpression() {}

func (*BinaryExpr) expression()     {}
func (*NotExpr) expression()        {}
func (*ComparisonExpr) expression() {}
func (*InExpr) expression()         {}
func (*InSubqueryExpr) expression() {}
func (*LikeExpr) expression()       {}
func (*BetweenExpr) expression()    {}
func (*IsNullExpr) expression()     {}
func (*ExistsExpr) expression()     {}
