package query

import (
	"errors"
	"fmt"
)

// Parser limits. Queries arrive from clients of the approximation service,
// so the parser bounds the work a single statement can cause.
const (
	// MaxQueryLength caps the statement text in bytes
	MaxQueryLength = 1 << 20

	// MaxTokens caps the lexed statement
	MaxTokens = 20000

	// MaxExpressionDepth caps nesting of parenthesized expressions,
	// subqueries and CTE bodies combined
	MaxExpressionDepth = 100

	// MaxColumnNameLength caps a single column identifier
	MaxColumnNameLength = 256

	// MaxTableNameLength caps a table identifier including its schema
	MaxTableNameLength = 1024
)

// Sentinel causes carried by *SyntaxError; match them with errors.Is.
var (
	ErrQueryTooLong       = errors.New("statement exceeds the parser's length limit")
	ErrTooManyTokens      = errors.New("statement exceeds the parser's token limit")
	ErrExpressionTooDeep  = errors.New("expressions or subqueries nested too deeply")
	ErrColumnNameTooLong  = errors.New("column identifier exceeds the length limit")
	ErrTableNameTooLong   = errors.New("table identifier exceeds the length limit")
	ErrEmptyTableName     = errors.New("empty table identifier")
	ErrUnterminatedString = errors.New("quoted string or identifier is never closed")
)

// ValidateQuery rejects statement text over MaxQueryLength
func ValidateQuery(query string) error {
	return checkLimit(ErrQueryTooLong, len(query), MaxQueryLength, "bytes")
}

// ValidateTableName rejects empty or overlong table identifiers
func ValidateTableName(name string) error {
	if name == "" {
		return ErrEmptyTableName
	}
	return checkLimit(ErrTableNameTooLong, len(name), MaxTableNameLength, "bytes")
}

// ValidateColumnName rejects overlong column identifiers
func ValidateColumnName(name string) error {
	return checkLimit(ErrColumnNameTooLong, len(name), MaxColumnNameLength, "bytes")
}

// ValidateTokens rejects a token stream over MaxTokens
func ValidateTokens(tokens []Token) error {
	return checkLimit(ErrTooManyTokens, len(tokens), MaxTokens, "tokens")
}

func checkLimit(cause error, got, limit int, unit string) error {
	if got > limit {
		return fmt.Errorf("%w (%d %s, limit %d)", cause, got, unit, limit)
	}
	return nil
}

// nestingBudget bounds recursion in the parser. Every parseQuery and
// parenthesized expression spends one level and returns it on exit.
type nestingBudget struct {
	used  int
	limit int
}

func newNestingBudget() *nestingBudget {
	return &nestingBudget{limit: MaxExpressionDepth}
}

// Enter spends one level. A failed Enter spends nothing, so callers only
// Exit after success.
func (b *nestingBudget) Enter() error {
	if b.used >= b.limit {
		return fmt.Errorf("%w (limit %d)", ErrExpressionTooDeep, b.limit)
	}
	b.used++
	return nil
}

// Exit returns one level
func (b *nestingBudget) Exit() {
	b.used--
}
