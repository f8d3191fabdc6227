package query

import (
	"fmt"
	"strconv"
	"strings"
)

// parseOr parses OR expressions (lowest precedence)
func (p *Parser) parseOr() (Expression, error) {
	if err := p.nesting.Enter(); err != nil {
		return nil, err
	}
	defer p.nesting.Exit()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Left:     left,
			Operator: TokenOr,
			Right:    right,
		}
	}

	return left, nil
}

// parseAnd parses AND expressions (higher precedence than OR)
func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{
			Left:     left,
			Operator: TokenAnd,
			Right:    right,
		}
	}

	return left, nil
}

// parseNot parses a prefix NOT (NOT EXISTS is left to parsePredicate)
func (p *Parser) parseNot() (Expression, error) {
	if p.current().Type == TokenNot && p.peek().Type != TokenExists {
		p.advance()
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: expr}, nil
	}
	return p.parsePredicate()
}

// parsePredicate parses a single predicate: a comparison, IN, LIKE, BETWEEN,
// IS NULL, EXISTS or a parenthesized boolean expression
func (p *Parser) parsePredicate() (Expression, error) {
	// EXISTS doesn't start with a value
	if p.current().Type == TokenExists || (p.current().Type == TokenNot && p.peek().Type == TokenExists) {
		return p.parseExistsExpr()
	}

	// A parenthesis opens either a boolean group or a value expression such
	// as (a + b) > 3. Try the boolean reading first and rewind if it fails.
	if p.current().Type == TokenLeftParen && !p.startsQuery(p.peek()) {
		save := p.pos
		p.advance()
		expr, err := p.parseOr()
		if err == nil && p.current().Type == TokenRightParen {
			p.advance()
			if !p.continuesValue() {
				return expr, nil
			}
		}
		p.pos = save
	}

	left, err := p.parseValueExpression()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	switch tok.Type {
	case TokenIn:
		return p.parseInExpr(left, false)
	case TokenLike:
		return p.parseLikeExpr(left, false)
	case TokenBetween:
		return p.parseBetweenExpr(left, false)
	case TokenIs:
		return p.parseIsNullExpr(left)
	case TokenNot:
		// NOT IN, NOT LIKE, NOT BETWEEN
		p.advance()
		switch p.current().Type {
		case TokenIn:
			return p.parseInExpr(left, true)
		case TokenLike:
			return p.parseLikeExpr(left, true)
		case TokenBetween:
			return p.parseBetweenExpr(left, true)
		default:
			return nil, fmt.Errorf("expected IN, LIKE or BETWEEN after NOT, got %v", p.current().Type)
		}
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual:
		p.advance()
		right, err := p.parseValueExpression()
		if err != nil {
			return nil, fmt.Errorf("failed to parse right side of %v: %w", tok.Type, err)
		}
		return &ComparisonExpr{Left: left, Operator: tok.Type, Right: right}, nil
	default:
		return nil, fmt.Errorf("expected comparison operator, got %v", tok.Type)
	}
}

// startsQuery reports whether tok begins a nested query
func (p *Parser) startsQuery(tok Token) bool {
	return tok.Type == TokenSelect || tok.Type == TokenWith
}

// continuesValue reports whether the current token extends a value
// expression, meaning a just-closed parenthesis held a value, not a predicate
func (p *Parser) continuesValue() bool {
	switch p.current().Type {
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual,
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent, TokenConcat,
		TokenIn, TokenLike, TokenBetween, TokenIs:
		return true
	case TokenNot:
		next := p.peek().Type
		return next == TokenIn || next == TokenLike || next == TokenBetween
	}
	return false
}

// parseInExpr parses IN (v1, v2, ...) or IN (SELECT ...)
func (p *Parser) parseInExpr(left SelectExpression, negate bool) (Expression, error) {
	if err := p.expect(TokenIn); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, fmt.Errorf("expected ( after IN: %w", err)
	}

	// IN (SELECT ...)
	if p.startsQuery(p.current()) {
		subquery, err := p.parseQuery()
		if err != nil {
			return nil, fmt.Errorf("failed to parse IN subquery: %w", err)
		}
		if err := p.expect(TokenRightParen); err != nil {
			return nil, fmt.Errorf("expected ) after IN subquery: %w", err)
		}
		return &InSubqueryExpr{Expr: left, Subquery: subquery, Negate: negate}, nil
	}

	// IN (value, value, ...)
	var values []SelectExpression
	for {
		value, err := p.parseValueExpression()
		if err != nil {
			return nil, fmt.Errorf("failed to parse IN value: %w", err)
		}
		values = append(values, value)

		if p.current().Type == TokenComma {
			p.advance()
			continue
		}
		break
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ) after IN values: %w", err)
	}

	return &InExpr{Expr: left, Values: values, Negate: negate}, nil
}

// parseLikeExpr parses LIKE 'pattern'
func (p *Parser) parseLikeExpr(left SelectExpression, negate bool) (Expression, error) {
	if err := p.expect(TokenLike); err != nil {
		return nil, err
	}

	if p.current().Type != TokenString {
		return nil, fmt.Errorf("expected string pattern after LIKE, got %v", p.current().Type)
	}
	pattern := p.current().Value
	p.advance()

	return &LikeExpr{Expr: left, Pattern: pattern, Negate: negate}, nil
}

// parseBetweenExpr parses BETWEEN lower AND upper
func (p *Parser) parseBetweenExpr(left SelectExpression, negate bool) (Expression, error) {
	if err := p.expect(TokenBetween); err != nil {
		return nil, err
	}

	lower, err := p.parseValueExpression()
	if err != nil {
		return nil, fmt.Errorf("failed to parse BETWEEN lower bound: %w", err)
	}

	if err := p.expect(TokenAnd); err != nil {
		return nil, fmt.Errorf("expected AND in BETWEEN: %w", err)
	}

	upper, err := p.parseValueExpression()
	if err != nil {
		return nil, fmt.Errorf("failed to parse BETWEEN upper bound: %w", err)
	}

	return &BetweenExpr{Expr: left, Lower: lower, Upper: upper, Negate: negate}, nil
}

// parseIsNullExpr parses IS NULL / IS NOT NULL
func (p *Parser) parseIsNullExpr(left SelectExpression) (Expression, error) {
	if err := p.expect(TokenIs); err != nil {
		return nil, err
	}

	negate := false
	if p.current().Type == TokenNot {
		negate = true
		p.advance()
	}

	if err := p.expect(TokenNull); err != nil {
		return nil, fmt.Errorf("expected NULL after IS: %w", err)
	}

	return &IsNullExpr{Expr: left, Negate: negate}, nil
}

// parseExistsExpr parses [NOT] EXISTS (SELECT ...)
func (p *Parser) parseExistsExpr() (Expression, error) {
	negate := false
	if p.current().Type == TokenNot {
		negate = true
		p.advance()
	}

	if err := p.expect(TokenExists); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, fmt.Errorf("expected ( after EXISTS: %w", err)
	}

	subquery, err := p.parseQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXISTS subquery: %w", err)
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ) after EXISTS subquery: %w", err)
	}

	return &ExistsExpr{Subquery: subquery, Negate: negate}, nil
}

// parseValueExpression parses a value expression (lowest precedence: + - ||)
func (p *Parser) parseValueExpression() (SelectExpression, error) {
	if err := p.nesting.Enter(); err != nil {
		return nil, err
	}
	defer p.nesting.Exit()

	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		op := p.current().Type
		if op != TokenPlus && op != TokenMinus && op != TokenConcat {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ArithmeticExpr{Left: left, Operator: op, Right: right}
	}
}

// parseMultiplicative parses * / %
func (p *Parser) parseMultiplicative() (SelectExpression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.current().Type
		if op != TokenStar && op != TokenSlash && op != TokenPercent {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ArithmeticExpr{Left: left, Operator: op, Right: right}
	}
}

// parseUnary parses a leading sign. A minus directly before a number folds
// into a negative literal.
func (p *Parser) parseUnary() (SelectExpression, error) {
	switch p.current().Type {
	case TokenPlus:
		p.advance()
		return p.parseUnary()
	case TokenMinus:
		p.advance()
		if p.current().Type == TokenNumber {
			lit, err := p.parseNumber("-" + p.current().Value)
			if err != nil {
				return nil, err
			}
			p.advance()
			return lit, nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NegateExpr{Operand: operand}, nil
	}
	return p.parsePrimary()
}

// parsePrimary parses columns, literals, function calls, CASE, scalar
// subqueries and parenthesized value expressions
func (p *Parser) parsePrimary() (SelectExpression, error) {
	tok := p.current()

	switch tok.Type {
	case TokenCase:
		return p.parseCaseExpression()

	case TokenLeftParen:
		if p.startsQuery(p.peek()) {
			return p.parseScalarSubquery()
		}
		p.advance() // consume (
		expr, err := p.parseValueExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightParen); err != nil {
			return nil, fmt.Errorf("expected ) after expression: %w", err)
		}
		return expr, nil

	case TokenStar:
		p.advance()
		return &ColumnRef{Column: "*"}, nil

	case TokenNumber:
		lit, err := p.parseNumber(tok.Value)
		if err != nil {
			return nil, err
		}
		p.advance()
		return lit, nil

	case TokenString:
		p.advance()
		return &LiteralExpr{Value: tok.Value}, nil

	case TokenBool:
		p.advance()
		return &LiteralExpr{Value: strings.EqualFold(tok.Value, "true")}, nil

	case TokenNull:
		p.advance()
		return &LiteralExpr{Value: nil}, nil

	case TokenIdent:
		if p.peek().Type == TokenLeftParen {
			return p.parseFunction()
		}
		if err := ValidateColumnName(tok.Value); err != nil {
			return nil, err
		}
		p.advance()
		return &ColumnRef{Column: tok.Value}, nil

	case TokenQuotedIdent:
		if err := ValidateColumnName(tok.Value); err != nil {
			return nil, err
		}
		p.advance()
		return &ColumnRef{Column: tok.Value, Quoted: true}, nil
	}

	return nil, fmt.Errorf("expected column name, literal, or function call, got %v", tok.Type)
}

// parseNumber converts a numeric token to an int64 or float64 literal
func (p *Parser) parseNumber(text string) (*LiteralExpr, error) {
	if !strings.Contains(text, ".") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &LiteralExpr{Value: n}, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number: %s", text)
	}
	return &LiteralExpr{Value: f}, nil
}

// parseCaseExpression parses CASE WHEN ... THEN ... [ELSE ...] END
func (p *Parser) parseCaseExpression() (SelectExpression, error) {
	if err := p.expect(TokenCase); err != nil {
		return nil, err
	}

	caseExpr := &CaseExpr{}

	// Parse WHEN clauses (at least one required)
	for p.current().Type == TokenWhen {
		p.advance()

		condition, err := p.parseOr()
		if err != nil {
			return nil, fmt.Errorf("failed to parse WHEN condition: %w", err)
		}

		if err := p.expect(TokenThen); err != nil {
			return nil, fmt.Errorf("expected THEN after WHEN condition: %w", err)
		}

		result, err := p.parseValueExpression()
		if err != nil {
			return nil, fmt.Errorf("failed to parse THEN result: %w", err)
		}

		caseExpr.WhenClauses = append(caseExpr.WhenClauses, WhenClause{
			Condition: condition,
			Result:    result,
		})
	}

	if len(caseExpr.WhenClauses) == 0 {
		return nil, fmt.Errorf("CASE expression requires at least one WHEN clause")
	}

	// Parse optional ELSE clause
	if p.current().Type == TokenElse {
		p.advance()
		elseExpr, err := p.parseValueExpression()
		if err != nil {
			return nil, fmt.Errorf("failed to parse ELSE result: %w", err)
		}
		caseExpr.ElseExpr = elseExpr
	}

	if err := p.expect(TokenEnd); err != nil {
		return nil, fmt.Errorf("expected END to close CASE expression: %w", err)
	}

	return caseExpr, nil
}

// parseScalarSubquery parses (SELECT ...) used as a value
func (p *Parser) parseScalarSubquery() (SelectExpression, error) {
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}

	subquery, err := p.parseQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to parse scalar subquery: %w", err)
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ) after scalar subquery: %w", err)
	}

	return &ScalarSubqueryExpr{Query: subquery}, nil
}
