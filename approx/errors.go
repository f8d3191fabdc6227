package approx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is matched by errors for query text that could not be parsed
	ErrParse = errors.New("parse error")

	// ErrUnsupportedQuery is matched by errors for queries that cannot be
	// approximated; callers may run them exactly instead
	ErrUnsupportedQuery = errors.New("query not supported for approximation")

	// ErrRewrite is matched by errors for queries the rewrite policy refused
	ErrRewrite = errors.New("query rewrite failed")
)

// ParseError wraps a failure of the SQL parser
type ParseError struct {
	Query string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrParse, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// UnsupportedQueryError reports why the eligibility check failed
type UnsupportedQueryError struct {
	Reason string
}

func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnsupportedQuery, e.Reason)
}

func (e *UnsupportedQueryError) Is(target error) bool { return target == ErrUnsupportedQuery }

// Diagnostic records a construct the rewrite policy could not carry
type Diagnostic struct {
	Depth     int    // scope depth, 0 for the outermost query
	Construct string // offending SQL fragment
	Message   string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("scope %d: %s: %s", d.Depth, d.Message, d.Construct)
}

// RewriteError carries every diagnostic collected during a rewrite
type RewriteError struct {
	Diagnostics []Diagnostic
}

func (e *RewriteError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.String()
	}
	return fmt.Sprintf("%v: %s", ErrRewrite, strings.Join(parts, "; "))
}

func (e *RewriteError) Is(target error) bool { return target == ErrRewrite }
