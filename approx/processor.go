package approx

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vegasq/approxq/query"
)

// Rows is the row iterator returned by an Executor. *sql.Rows satisfies it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Executor runs SQL text against the database holding base and sample tables
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string) (Rows, error)
}

// Result pairs the rows of a query with one error margin per column
type Result struct {
	ID          string
	Rows        Rows
	Errors      ErrorMargins
	Rewrite     *Rewrite // nil when the query ran exactly
	Approximate bool
}

// Processor answers aggregate queries from sample tables. It keeps no
// per-query state and is safe for concurrent use.
type Processor struct {
	catalog       Catalog
	executor      Executor
	policy        Policy
	annotator     Annotator
	defaultSchema string
	logger        *slog.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithPolicy selects the rewrite policy (default Bootstrapping)
func WithPolicy(policy Policy) Option {
	return func(p *Processor) {
		p.policy = policy
	}
}

// WithAnnotator replaces the error annotator (default FixedMargin at
// DefaultErrorMargin)
func WithAnnotator(annotator Annotator) Option {
	return func(p *Processor) {
		p.annotator = annotator
	}
}

// WithDefaultSchema sets the schema of unqualified table references
func WithDefaultSchema(schema string) Option {
	return func(p *Processor) {
		p.defaultSchema = schema
	}
}

// WithLogger sets the logger for rewrite and substitution messages
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// New creates a processor reading sample mappings from catalog and running
// queries through executor.
func New(catalog Catalog, executor Executor, opts ...Option) *Processor {
	p := &Processor{
		catalog:       catalog,
		executor:      executor,
		policy:        Bootstrapping{},
		annotator:     FixedMargin{Margin: DefaultErrorMargin},
		defaultSchema: DefaultSchema,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DoesSupport reports whether text can be approximated
func (p *Processor) DoesSupport(text string) bool {
	return DoesSupport(text)
}

// Rewrite parses text, checks eligibility and rewrites it against the
// catalog without executing anything.
func (p *Processor) Rewrite(text string) (*Rewrite, error) {
	_, rw, err := p.prepare(text)
	return rw, err
}

// prepare runs the pipeline up to execution. The parsed query is returned
// whenever parsing succeeded, including for unsupported queries.
func (p *Processor) prepare(text string) (*query.Query, *Rewrite, error) {
	q, err := query.Parse(text)
	if err != nil {
		return nil, nil, &ParseError{Query: text, Err: err}
	}

	if c := checkSelectList(q.SelectList); !c.eligible() {
		return q, nil, &UnsupportedQueryError{Reason: c.reason()}
	}

	e := &engine{catalog: p.catalog, policy: p.policy, defaultSchema: p.defaultSchema}
	rw := e.rewrite(q)
	if err := rw.Err(); err != nil {
		return q, nil, err
	}
	return q, rw, nil
}

// Compute rewrites text against sample tables, executes the rewritten query
// and returns its rows with per-column error margins. Parse, eligibility and
// rewrite failures are returned before anything is executed; execution
// errors are returned unchanged.
func (p *Processor) Compute(ctx context.Context, text string) (*Result, error) {
	id := uuid.NewString()
	logger := p.logger.With("query_id", id)

	_, rw, err := p.prepare(text)
	if err != nil {
		logger.Debug("query not approximated", "error", err)
		return nil, err
	}

	margins := p.annotator.Annotate(rw.Columns, rw.Samples)

	logger.Debug("rewritten query", "policy", p.policy.Name(), "sql", rw.SQL)
	for _, original := range rw.Samples.Originals() {
		logger.Info("using sample table", "table", original.String(), "sample", rw.Samples[original].String())
	}

	rows, err := p.executor.ExecuteQuery(ctx, rw.SQL)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:          id,
		Rows:        rows,
		Errors:      margins,
		Rewrite:     rw,
		Approximate: true,
	}, nil
}

// ComputeOrExact behaves like Compute, except that a query which cannot be
// approximated runs unchanged with zero margins.
func (p *Processor) ComputeOrExact(ctx context.Context, text string) (*Result, error) {
	res, err := p.Compute(ctx, text)
	if err == nil || !errors.Is(err, ErrUnsupportedQuery) {
		return res, err
	}

	q, parseErr := query.Parse(text)
	if parseErr != nil {
		return nil, &ParseError{Query: text, Err: parseErr}
	}

	id := uuid.NewString()
	p.logger.Info("running query exactly", "query_id", id, "reason", err.Error())

	rows, err := p.executor.ExecuteQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:     id,
		Rows:   rows,
		Errors: exactMargins(len(q.SelectList)),
	}, nil
}
