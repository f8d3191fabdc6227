// Command approxq answers aggregate SQL queries from pre-built sample
// tables and reports an error margin for every output column.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/vegasq/approxq/approx"
	"github.com/vegasq/approxq/catalog"
	"github.com/vegasq/approxq/catalog/postgres"
	"github.com/vegasq/approxq/config"
	"github.com/vegasq/approxq/execution"
	"github.com/vegasq/approxq/output"
)

// Options are the command line flags. Flags override the config file.
type Options struct {
	Config        string   `short:"c" long:"config" description:"configuration file (YAML)"`
	Query         string   `short:"q" long:"query" description:"SQL query; the first argument is used when omitted"`
	Format        string   `short:"f" long:"format" description:"output format: jsonl, csv, table, parquet (default: from --output, else jsonl)"`
	Output        string   `short:"o" long:"output" description:"write results to a file; .gz and .zst suffixes compress"`
	Driver        string   `long:"driver" description:"database driver: postgres, sqlite3, trino"`
	DSN           string   `long:"dsn" description:"database connection string"`
	Catalog       string   `long:"catalog" description:"sample catalog file (YAML)"`
	Policy        string   `long:"policy" description:"rewrite policy: bootstrapping, direct"`
	Margin        float64  `long:"margin" description:"error margin reported for aggregate columns"`
	Explain       bool     `long:"explain" description:"print the rewrite without executing it"`
	Check         bool     `long:"check" description:"only report whether the query can be approximated"`
	ExactFallback bool     `long:"exact-fallback" description:"run queries that cannot be approximated exactly"`
	Register      []string `long:"register" description:"register a sample in the postgres registry: original=sample@ratio"`
	Remove        []string `long:"remove" description:"remove a sample from the postgres registry: original=sample"`
	LogLevel      string   `long:"log-level" description:"debug, info, warn, error"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] [QUERY]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(stdout, err)
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if opts.Query == "" && len(rest) > 0 {
		opts.Query = strings.Join(rest, " ")
	}

	if opts.Check {
		return check(opts.Query, stdout, stderr)
	}

	cfg, err := loadConfig(&opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger := newLogger(cfg.Log, stderr)

	if err := execute(ctx, &opts, cfg, logger, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// check prints whether the query can be approximated. Nothing is opened.
func check(text string, stdout, stderr io.Writer) int {
	if text == "" {
		_, _ = fmt.Fprintln(stderr, "Error: no query given")
		return 2
	}
	if err := approx.Check(text); err != nil {
		_, _ = fmt.Fprintf(stdout, "not supported: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "supported")
	return 0
}

// loadConfig reads the config file, if any, and applies flag overrides
func loadConfig(opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}
	if opts.Catalog != "" {
		cfg.Catalog.Source = config.CatalogFile
		cfg.Catalog.File = opts.Catalog
	}
	if opts.Policy != "" {
		cfg.Rewrite.Policy = opts.Policy
	}
	if opts.Margin != 0 {
		cfg.Rewrite.ErrorMargin = opts.Margin
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel()
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func execute(ctx context.Context, opts *Options, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	samples, closeCatalog, err := openCatalog(ctx, opts, cfg)
	if err != nil {
		return err
	}
	defer closeCatalog()

	if opts.Query == "" {
		if len(opts.Register) > 0 || len(opts.Remove) > 0 {
			return nil
		}
		return errors.New("no query given")
	}

	policy, err := approx.PolicyByName(cfg.Rewrite.Policy)
	if err != nil {
		return err
	}
	procOpts := []approx.Option{
		approx.WithPolicy(policy),
		approx.WithAnnotator(approx.FixedMargin{Margin: cfg.Rewrite.ErrorMargin}),
		approx.WithDefaultSchema(cfg.Catalog.DefaultSchema),
		approx.WithLogger(logger),
	}

	if opts.Explain {
		rw, err := approx.New(samples, nil, procOpts...).Rewrite(opts.Query)
		if err != nil {
			return err
		}
		explain(stdout, rw)
		return nil
	}

	db, err := execution.Open(ctx, execution.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	p := approx.New(samples, db, procOpts...)

	var res *approx.Result
	if opts.ExactFallback {
		res, err = p.ComputeOrExact(ctx, opts.Query)
	} else {
		res, err = p.Compute(ctx, opts.Query)
	}
	if err != nil {
		return err
	}

	table, err := output.Collect(res)
	if err != nil {
		return err
	}
	return write(opts, table, stdout)
}

// openCatalog builds the sample catalog from the configured source. The
// returned function releases it.
func openCatalog(ctx context.Context, opts *Options, cfg *config.Config) (*catalog.Static, func(), error) {
	noop := func() {}

	if cfg.Catalog.Source == config.CatalogFile {
		if len(opts.Register) > 0 || len(opts.Remove) > 0 {
			return nil, noop, errors.New("--register and --remove need the postgres catalog source")
		}
		entries, err := catalog.LoadFile(cfg.Catalog.File, cfg.Catalog.DefaultSchema)
		if err != nil {
			return nil, noop, err
		}
		return catalog.NewStatic(entries...), noop, nil
	}

	db, err := execution.Open(ctx, execution.Config{
		Driver: execution.DriverPostgres,
		DSN:    cfg.Catalog.RegistryDSN(cfg.Database),
	})
	if err != nil {
		return nil, noop, fmt.Errorf("opening sample registry: %w", err)
	}

	if cfg.Catalog.Migrate {
		if err := postgres.Migrate(db.SQL()); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
	}

	store := postgres.New(db.SQL(), postgres.Config{DefaultSchema: cfg.Catalog.DefaultSchema})
	release := func() {
		_ = store.Close()
		_ = db.Close()
	}

	if err := applyRegistryChanges(ctx, store, opts, cfg.Catalog.DefaultSchema); err != nil {
		release()
		return nil, noop, err
	}

	samples := catalog.NewStatic()
	if err := store.Load(ctx, samples); err != nil {
		release()
		return nil, noop, err
	}
	if cfg.Catalog.RefreshInterval > 0 {
		store.StartRefreshRoutine(samples, cfg.Catalog.RefreshInterval)
	}

	return samples, release, nil
}

func applyRegistryChanges(ctx context.Context, store *postgres.Store, opts *Options, defaultSchema string) error {
	for _, spec := range opts.Register {
		original, sample, ratio, err := parseSampleSpec(spec, defaultSchema, true)
		if err != nil {
			return err
		}
		if err := store.Register(ctx, original, sample, ratio); err != nil {
			return err
		}
		slog.Info("registered sample table", "table", original.String(), "sample", sample.String(), "ratio", ratio)
	}
	for _, spec := range opts.Remove {
		original, sample, _, err := parseSampleSpec(spec, defaultSchema, false)
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, original, sample); err != nil {
			return err
		}
		slog.Info("removed sample table", "table", original.String(), "sample", sample.String())
	}
	return nil
}

// parseSampleSpec parses original=sample, followed by @ratio when withRatio
// is set
func parseSampleSpec(spec, defaultSchema string, withRatio bool) (approx.TableUniqueName, approx.TableUniqueName, float64, error) {
	var none approx.TableUniqueName

	rest := spec
	ratio := 0.0
	if withRatio {
		i := strings.LastIndex(rest, "@")
		if i < 0 {
			return none, none, 0, fmt.Errorf("sample %q: expected original=sample@ratio", spec)
		}
		r, err := strconv.ParseFloat(rest[i+1:], 64)
		if err != nil {
			return none, none, 0, fmt.Errorf("sample %q: invalid ratio: %w", spec, err)
		}
		ratio = r
		rest = rest[:i]
	}

	originalText, sampleText, ok := strings.Cut(rest, "=")
	if !ok {
		return none, none, 0, fmt.Errorf("sample %q: expected original=sample", spec)
	}
	original, err := approx.ParseTableUniqueName(originalText, defaultSchema)
	if err != nil {
		return none, none, 0, fmt.Errorf("sample %q: %w", spec, err)
	}
	sample, err := approx.ParseTableUniqueName(sampleText, defaultSchema)
	if err != nil {
		return none, none, 0, fmt.Errorf("sample %q: %w", spec, err)
	}
	return original, sample, ratio, nil
}

// write renders the table to --output or stdout
func write(opts *Options, table *output.Table, stdout io.Writer) error {
	format := opts.Format
	if format == "" {
		format = output.FormatFor(opts.Output)
	}
	if format == "" {
		format = "jsonl"
	}

	var w io.Writer = stdout
	var closer io.Closer
	if opts.Output != "" {
		f, err := output.Create(opts.Output)
		if err != nil {
			return err
		}
		w, closer = f, f
	}

	formatter, err := output.New(format, w)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return err
	}
	if err := formatter.Format(table); err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}
