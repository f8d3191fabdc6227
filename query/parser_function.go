package query

import (
	"fmt"
	"strconv"
	"strings"
)

// aggregateFunctions lists the functions parsed as aggregates
var aggregateFunctions = map[string]bool{
	"COUNT":       true,
	"SUM":         true,
	"AVG":         true,
	"MIN":         true,
	"MAX":         true,
	"STDDEV":      true,
	"STDDEV_POP":  true,
	"STDDEV_SAMP": true,
	"VARIANCE":    true,
	"VAR_POP":     true,
	"VAR_SAMP":    true,
}

// windowFunctions lists the functions that only exist with an OVER clause
var windowFunctions = map[string]bool{
	"ROW_NUMBER":   true,
	"RANK":         true,
	"DENSE_RANK":   true,
	"PERCENT_RANK": true,
	"CUME_DIST":    true,
	"NTILE":        true,
	"FIRST_VALUE":  true,
	"LAST_VALUE":   true,
	"NTH_VALUE":    true,
	"LAG":          true,
	"LEAD":         true,
}

// IsAggregateFunction reports whether name is an aggregate function
func IsAggregateFunction(name string) bool {
	return aggregateFunctions[strings.ToUpper(name)]
}

// IsWindowFunction reports whether name is a window-only function
func IsWindowFunction(name string) bool {
	return windowFunctions[strings.ToUpper(name)]
}

// parseFunction dispatches on the function name at the current token
func (p *Parser) parseFunction() (SelectExpression, error) {
	name := p.current().Value
	switch {
	case IsAggregateFunction(name):
		return p.parseAggregateFunction()
	case IsWindowFunction(name):
		return p.parseWindowFunction()
	default:
		return p.parseFunctionCall()
	}
}

// parseArguments parses a comma-separated argument list up to, not
// including, the closing parenthesis
func (p *Parser) parseArguments() ([]SelectExpression, error) {
	var args []SelectExpression
	if p.current().Type == TokenRightParen {
		return args, nil
	}

	for {
		arg, err := p.parseValueExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.current().Type == TokenComma {
			p.advance()
			continue
		}
		return args, nil
	}
}

// parseFunctionCall parses a scalar function call
func (p *Parser) parseFunctionCall() (SelectExpression, error) {
	funcName := p.current().Value
	p.advance() // skip function name

	if err := p.expect(TokenLeftParen); err != nil {
		return nil, fmt.Errorf("expected '(' after function name: %w", err)
	}

	args, err := p.parseArguments()
	if err != nil {
		return nil, err
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ')' after function arguments: %w", err)
	}

	return &FunctionCall{Name: funcName, Args: args}, nil
}

// parseAggregateFunction parses an aggregate call. An OVER clause turns it
// into a windowed aggregate.
func (p *Parser) parseAggregateFunction() (SelectExpression, error) {
	funcName := strings.ToUpper(p.current().Value)
	p.advance() // skip function name

	if err := p.expect(TokenLeftParen); err != nil {
		return nil, fmt.Errorf("expected '(' after aggregate function: %w", err)
	}

	distinct := false
	if p.current().Type == TokenDistinct {
		distinct = true
		p.advance()
	}

	var arg SelectExpression
	if funcName == "COUNT" && !distinct && p.current().Type == TokenStar {
		// COUNT(*) has no argument
		p.advance()
	} else {
		argExpr, err := p.parseValueExpression()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s argument: %w", funcName, err)
		}
		arg = argExpr
	}

	// MIN/MAX with several arguments is the scalar LEAST/GREATEST form
	if (funcName == "MIN" || funcName == "MAX") && !distinct && p.current().Type == TokenComma {
		args := []SelectExpression{arg}
		for p.current().Type == TokenComma {
			p.advance() // skip comma
			nextArg, err := p.parseValueExpression()
			if err != nil {
				return nil, fmt.Errorf("failed to parse function argument: %w", err)
			}
			args = append(args, nextArg)
		}

		if err := p.expect(TokenRightParen); err != nil {
			return nil, fmt.Errorf("expected ')' after function arguments: %w", err)
		}

		return &FunctionCall{Name: funcName, Args: args}, nil
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ')' after aggregate function argument: %w", err)
	}

	if p.current().Type != TokenOver {
		return &AggregateExpr{Function: funcName, Arg: arg, Distinct: distinct}, nil
	}
	p.advance() // skip OVER

	window, err := p.parseWindowSpec()
	if err != nil {
		return nil, fmt.Errorf("failed to parse window specification: %w", err)
	}
	if arg == nil {
		arg = &ColumnRef{Column: "*"}
	}

	return &WindowExpr{
		Function: funcName,
		Args:     []SelectExpression{arg},
		Distinct: distinct,
		Window:   window,
	}, nil
}

// parseWindowFunction parses a ranking or offset function, which always
// carries an OVER clause
func (p *Parser) parseWindowFunction() (SelectExpression, error) {
	funcName := strings.ToUpper(p.current().Value)
	p.advance() // skip function name

	if err := p.expect(TokenLeftParen); err != nil {
		return nil, fmt.Errorf("expected '(' after window function name: %w", err)
	}

	args, err := p.parseArguments()
	if err != nil {
		return nil, err
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ')' after window function arguments: %w", err)
	}

	if p.current().Type != TokenOver {
		return nil, fmt.Errorf("window function %s requires OVER clause", funcName)
	}
	p.advance() // skip OVER

	window, err := p.parseWindowSpec()
	if err != nil {
		return nil, fmt.Errorf("failed to parse window specification: %w", err)
	}

	return &WindowExpr{Function: funcName, Args: args, Window: window}, nil
}

// parseWindowSpec parses ( [PARTITION BY ...] [ORDER BY ...] [frame] )
func (p *Parser) parseWindowSpec() (*WindowSpec, error) {
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, fmt.Errorf("expected '(' after OVER: %w", err)
	}

	spec := &WindowSpec{}

	if p.current().Type == TokenPartition {
		p.advance()
		if err := p.expect(TokenBy); err != nil {
			return nil, fmt.Errorf("expected BY after PARTITION: %w", err)
		}

		for {
			expr, err := p.parseValueExpression()
			if err != nil {
				return nil, fmt.Errorf("failed to parse PARTITION BY expression: %w", err)
			}
			spec.PartitionBy = append(spec.PartitionBy, expr)

			if p.current().Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
	}

	if p.current().Type == TokenOrder {
		p.advance()
		if err := p.expect(TokenBy); err != nil {
			return nil, fmt.Errorf("expected BY after ORDER: %w", err)
		}

		orderBy, err := p.parseOrderByList()
		if err != nil {
			return nil, fmt.Errorf("failed to parse ORDER BY in window: %w", err)
		}
		spec.OrderBy = orderBy
	}

	if p.current().Type == TokenRows || p.current().Type == TokenRange {
		frame, err := p.parseWindowFrame()
		if err != nil {
			return nil, fmt.Errorf("failed to parse window frame: %w", err)
		}
		spec.Frame = frame
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, fmt.Errorf("expected ')' after window specification: %w", err)
	}

	return spec, nil
}

// parseWindowFrame parses ROWS|RANGE bound or ROWS|RANGE BETWEEN bound AND bound
func (p *Parser) parseWindowFrame() (*WindowFrame, error) {
	frame := &WindowFrame{}

	switch p.current().Type {
	case TokenRows:
		frame.Type = FrameTypeRows
	case TokenRange:
		frame.Type = FrameTypeRange
	default:
		return nil, fmt.Errorf("expected ROWS or RANGE")
	}
	p.advance()

	if p.current().Type != TokenBetween {
		// A single bound means BETWEEN bound AND CURRENT ROW
		bound, err := p.parseFrameBound()
		if err != nil {
			return nil, fmt.Errorf("failed to parse frame bound: %w", err)
		}
		frame.Start = bound
		frame.End = FrameBound{Type: BoundCurrentRow}
		return frame, nil
	}

	p.advance()
	frame.Between = true

	start, err := p.parseFrameBound()
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame start bound: %w", err)
	}
	frame.Start = start

	if err := p.expect(TokenAnd); err != nil {
		return nil, fmt.Errorf("expected AND in BETWEEN frame clause: %w", err)
	}

	end, err := p.parseFrameBound()
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame end bound: %w", err)
	}
	frame.End = end

	return frame, nil
}

// parseFrameBound parses UNBOUNDED PRECEDING|FOLLOWING, CURRENT ROW or
// n PRECEDING|FOLLOWING
func (p *Parser) parseFrameBound() (FrameBound, error) {
	var bound FrameBound

	word := strings.ToUpper(p.current().Value)
	switch {
	case word == "UNBOUNDED":
		p.advance()
		switch strings.ToUpper(p.current().Value) {
		case "PRECEDING":
			bound.Type = BoundUnboundedPreceding
		case "FOLLOWING":
			bound.Type = BoundUnboundedFollowing
		default:
			return bound, fmt.Errorf("expected PRECEDING or FOLLOWING after UNBOUNDED")
		}
		p.advance()
		return bound, nil

	case word == "CURRENT":
		p.advance()
		if strings.ToUpper(p.current().Value) != "ROW" {
			return bound, fmt.Errorf("expected ROW after CURRENT")
		}
		p.advance()
		bound.Type = BoundCurrentRow
		return bound, nil

	case p.current().Type == TokenNumber:
		offset, err := strconv.ParseInt(p.current().Value, 10, 64)
		if err != nil {
			return bound, fmt.Errorf("invalid offset in frame bound: %w", err)
		}
		bound.Offset = offset
		p.advance()

		switch strings.ToUpper(p.current().Value) {
		case "PRECEDING":
			bound.Type = BoundOffsetPreceding
		case "FOLLOWING":
			bound.Type = BoundOffsetFollowing
		default:
			return bound, fmt.Errorf("expected PRECEDING or FOLLOWING after offset")
		}
		p.advance()
		return bound, nil
	}

	return bound, fmt.Errorf("invalid frame bound")
}
