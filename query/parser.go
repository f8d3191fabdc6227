package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a query that could not be parsed. Pos is the byte
// offset of the token where parsing stopped.
type SyntaxError struct {
	Pos  int
	Near string
	Err  error
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("syntax error at position %d: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("syntax error at position %d near %q: %v", e.Pos, e.Near, e.Err)
}

// Unwrap returns the underlying parse failure
func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Parser parses SQL queries into AST
type Parser struct {
	tokens  []Token
	pos     int
	nesting *nestingBudget
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:  tokens,
		pos:     0,
		nesting: newNestingBudget(),
	}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Value: ""}
	}
	return p.tokens[p.pos]
}

// peek returns the next token without advancing
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF, Value: ""}
	}
	return p.tokens[p.pos+1]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) error {
	if p.current().Type != tokType {
		return fmt.Errorf("expected %v, got %v", tokType, p.current().Type)
	}
	p.advance()
	return nil
}

// isIdent reports whether the current token can name a table, column or alias
func (p *Parser) isIdent() bool {
	t := p.current().Type
	return t == TokenIdent || t == TokenQuotedIdent
}

// Parse parses a SQL query. Every failure is returned as a *SyntaxError.
func Parse(query string) (*Query, error) {
	// Validate query length
	if err := ValidateQuery(query); err != nil {
		return nil, &SyntaxError{Err: err}
	}

	tokens := Tokenize(query)

	// Validate token count
	if err := ValidateTokens(tokens); err != nil {
		return nil, &SyntaxError{Err: err}
	}
	if last := tokens[len(tokens)-1]; last.Type == TokenError {
		return nil, &SyntaxError{Pos: last.Pos, Near: last.Value, Err: lexError(last.Value)}
	}

	parser := NewParser(tokens)
	q, err := parser.parseQuery()
	if err != nil {
		return nil, parser.syntaxError(err)
	}

	// A single trailing semicolon terminates the statement
	if parser.current().Type == TokenSemicolon {
		parser.advance()
	}

	// Validate that we consumed all tokens (should be at EOF)
	if parser.current().Type != TokenEOF {
		return nil, parser.syntaxError(fmt.Errorf("unexpected trailing tokens after query: %s", parser.current().Value))
	}

	return q, nil
}

// lexError describes the token the lexer stopped at
func lexError(value string) error {
	if strings.ContainsAny(value[:1], "'\"`") {
		return ErrUnterminatedString
	}
	return fmt.Errorf("invalid character in query: %s", value)
}

// syntaxError wraps err with the position of the current token
func (p *Parser) syntaxError(err error) *SyntaxError {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se
	}
	tok := p.current()
	return &SyntaxError{Pos: tok.Pos, Near: tok.Value, Err: err}
}

// parseQuery parses: [WITH cte AS (...)] SELECT [DISTINCT] list FROM source [joins]
// [WHERE expr] [GROUP BY cols] [HAVING expr] [ORDER BY items] [LIMIT n] [OFFSET n]
func (p *Parser) parseQuery() (*Query, error) {
	if err := p.nesting.Enter(); err != nil {
		return nil, err
	}
	defer p.nesting.Exit()

	q := &Query{}

	// Parse WITH clause (optional)
	if p.current().Type == TokenWith {
		ctes, err := p.parseWithClause()
		if err != nil {
			return nil, err
		}
		q.CTEs = ctes
	}

	// Parse SELECT
	if err := p.expect(TokenSelect); err != nil {
		return nil, fmt.Errorf("query must start with SELECT (or WITH): %w", err)
	}

	// Check for DISTINCT
	if p.current().Type == TokenDistinct {
		q.Distinct = true
		p.advance()
	}

	// Parse SELECT list
	selectList, err := p.parseSelectList()
	if err != nil {
		return nil, fmt.Errorf("failed to parse SELECT list: %w", err)
	}
	q.SelectList = selectList

	// Parse FROM
	if err := p.expect(TokenFrom); err != nil {
		return nil, fmt.Errorf("expected FROM after SELECT list: %w", err)
	}
	source, err := p.parseTableSource("FROM")
	if err != nil {
		return nil, err
	}
	q.From = source

	// Parse JOIN clauses (optional, can be multiple)
	for p.isJoinStart() {
		join, err := p.parseJoin()
		if err != nil {
			return nil, fmt.Errorf("failed to parse JOIN: %w", err)
		}
		q.Joins = append(q.Joins, *join)
	}

	// Parse WHERE clause (optional)
	if p.current().Type == TokenWhere {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, fmt.Errorf("failed to parse WHERE clause: %w", err)
		}
		q.Filter = expr
	}

	// Parse GROUP BY clause (optional)
	if p.current().Type == TokenGroup {
		groupBy, err := p.parseGroupBy()
		if err != nil {
			return nil, err
		}
		q.GroupBy = groupBy
	}

	// Parse HAVING clause (optional). Without GROUP BY the whole input is one group.
	if p.current().Type == TokenHaving {
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, fmt.Errorf("failed to parse HAVING clause: %w", err)
		}
		q.Having = expr
	}

	// Parse ORDER BY clause (optional)
	if p.current().Type == TokenOrder {
		orderBy, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		q.OrderBy = orderBy
	}

	// Parse LIMIT clause (optional)
	if p.current().Type == TokenLimit {
		limit, err := p.parseCount(TokenLimit)
		if err != nil {
			return nil, err
		}
		q.Limit = limit
	}

	// Parse OFFSET clause (optional)
	if p.current().Type == TokenOffset {
		offset, err := p.parseCount(TokenOffset)
		if err != nil {
			return nil, err
		}
		q.Offset = offset
	}

	return q, nil
}

// isJoinStart reports whether the current token opens a JOIN clause
func (p *Parser) isJoinStart() bool {
	switch p.current().Type {
	case TokenJoin, TokenInner, TokenLeft, TokenRight, TokenFull, TokenCross:
		return true
	}
	return false
}

// parseTableSource parses a table name, CTE reference or parenthesized
// subquery, each with an optional alias
func (p *Parser) parseTableSource(clause string) (TableRef, error) {
	var ref TableRef

	if p.current().Type == TokenLeftParen {
		p.advance() // consume (
		subquery, err := p.parseQuery()
		if err != nil {
			return ref, fmt.Errorf("failed to parse subquery in %s: %w", clause, err)
		}
		if err := p.expect(TokenRightParen); err != nil {
			return ref, fmt.Errorf("expected ) after subquery: %w", err)
		}
		ref.Subquery = subquery
	} else {
		name, err := p.parseTableName(clause)
		if err != nil {
			return ref, err
		}
		ref.Name = name
	}

	alias, quoted, err := p.parseAlias()
	if err != nil {
		return ref, err
	}
	ref.Alias, ref.AliasQuoted = alias, quoted

	return ref, nil
}

// parseTableName parses a table identifier, splitting schema qualification
func (p *Parser) parseTableName(clause string) (TableName, error) {
	tok := p.current()
	switch tok.Type {
	case TokenIdent:
		if err := ValidateTableName(tok.Value); err != nil {
			return TableName{}, err
		}
		p.advance()
		if strings.HasPrefix(tok.Value, ".") || strings.HasSuffix(tok.Value, ".") {
			return TableName{}, fmt.Errorf("invalid table name %q", tok.Value)
		}
		if i := strings.LastIndex(tok.Value, "."); i >= 0 {
			return TableName{Schema: tok.Value[:i], Name: tok.Value[i+1:]}, nil
		}
		return TableName{Name: tok.Value}, nil
	case TokenQuotedIdent, TokenString:
		if err := ValidateTableName(tok.Value); err != nil {
			return TableName{}, err
		}
		p.advance()
		return TableName{Name: tok.Value, Quoted: true}, nil
	default:
		return TableName{}, fmt.Errorf("expected table name or subquery after %s, got %v", clause, tok.Type)
	}
}

// parseAlias parses an optional [AS] alias. Without AS only a bare
// identifier is taken as an alias.
func (p *Parser) parseAlias() (alias string, quoted bool, err error) {
	if p.current().Type == TokenAs {
		p.advance()
		if !p.isIdent() {
			return "", false, fmt.Errorf("expected alias name after AS, got %v", p.current().Type)
		}
	} else if p.current().Type != TokenIdent {
		return "", false, nil
	}
	tok := p.current()
	p.advance()
	return tok.Value, tok.Type == TokenQuotedIdent, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	var item SelectItem

	expr, err := p.parseValueExpression()
	if err != nil {
		return item, err
	}
	item.Expr = expr

	alias, quoted, err := p.parseAlias()
	if err != nil {
		return item, err
	}
	item.Alias, item.AliasQuoted = alias, quoted

	return item, nil
}

// parseGroupBy parses the GROUP BY clause
func (p *Parser) parseGroupBy() ([]*ColumnRef, error) {
	if err := p.expect(TokenGroup); err != nil {
		return nil, err
	}
	if err := p.expect(TokenBy); err != nil {
		return nil, fmt.Errorf("expected BY after GROUP: %w", err)
	}

	var columns []*ColumnRef

	for {
		if !p.isIdent() {
			return nil, fmt.Errorf("expected column name in GROUP BY, got %v", p.current().Type)
		}

		column := p.current().Value
		if err := ValidateColumnName(column); err != nil {
			return nil, err
		}

		columns = append(columns, &ColumnRef{Column: column, Quoted: p.current().Type == TokenQuotedIdent})
		p.advance()

		if p.current().Type == TokenComma {
			p.advance()
			continue
		}

		break
	}

	return columns, nil
}

// parseOrderBy parses the ORDER BY clause
func (p *Parser) parseOrderBy() ([]OrderByItem, error) {
	if err := p.expect(TokenOrder); err != nil {
		return nil, err
	}
	if err := p.expect(TokenBy); err != nil {
		return nil, fmt.Errorf("expected BY after ORDER: %w", err)
	}

	return p.parseOrderByList()
}

// parseOrderByList parses the ORDER BY item list (without ORDER BY keywords)
func (p *Parser) parseOrderByList() ([]OrderByItem, error) {
	var items []OrderByItem

	for {
		expr, err := p.parseValueExpression()
		if err != nil {
			return nil, fmt.Errorf("failed to parse ORDER BY item: %w", err)
		}

		item := OrderByItem{Expr: expr}

		// Check for ASC/DESC modifier
		if p.current().Type == TokenAsc {
			p.advance()
		} else if p.current().Type == TokenDesc {
			item.Desc = true
			p.advance()
		}

		items = append(items, item)

		if p.current().Type == TokenComma {
			p.advance()
			continue
		}

		break
	}

	return items, nil
}

// parseCount parses LIMIT n or OFFSET n
func (p *Parser) parseCount(keyword TokenType) (*int64, error) {
	if err := p.expect(keyword); err != nil {
		return nil, err
	}

	if p.current().Type != TokenNumber {
		return nil, fmt.Errorf("expected number after %v, got %v", keyword, p.current().Type)
	}

	numStr := p.current().Value
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %v value: %s", keyword, numStr)
	}

	p.advance()
	return &n, nil
}

// parseWithClause parses the WITH clause (Common Table Expressions)
// Syntax: WITH cte1 AS (query1), cte2 AS (query2)
func (p *Parser) parseWithClause() ([]CTE, error) {
	if err := p.expect(TokenWith); err != nil {
		return nil, err
	}

	if p.current().Type == TokenRecursive {
		return nil, fmt.Errorf("RECURSIVE CTEs are not supported")
	}

	var ctes []CTE
	seen := make(map[string]bool)

	for {
		if !p.isIdent() {
			return nil, fmt.Errorf("expected CTE name, got %v", p.current().Type)
		}
		cteName, cteQuoted := p.current().Value, p.current().Type == TokenQuotedIdent
		if seen[strings.ToLower(cteName)] {
			return nil, fmt.Errorf("CTE %q is defined more than once", cteName)
		}
		seen[strings.ToLower(cteName)] = true
		p.advance()

		if err := p.expect(TokenAs); err != nil {
			return nil, fmt.Errorf("expected AS after CTE name: %w", err)
		}
		if err := p.expect(TokenLeftParen); err != nil {
			return nil, fmt.Errorf("expected ( after AS: %w", err)
		}

		subquery, err := p.parseQuery()
		if err != nil {
			return nil, fmt.Errorf("failed to parse CTE subquery: %w", err)
		}

		if err := p.expect(TokenRightParen); err != nil {
			return nil, fmt.Errorf("expected ) after CTE subquery: %w", err)
		}

		ctes = append(ctes, CTE{Name: cteName, Quoted: cteQuoted, Query: subquery})

		if p.current().Type == TokenComma {
			p.advance()
			continue
		}

		break
	}

	return ctes, nil
}
