// Package postgres keeps the sample table registry in PostgreSQL and loads
// it into an in-memory catalog.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vegasq/approxq/approx"
	"github.com/vegasq/approxq/catalog"
)

const samplesTable = "approxq_samples"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sampleColumns = []string{
	"original_schema", "original_table", "sample_schema", "sample_table",
	"sampling_ratio", "created_at",
}

// Sample is one registered sample table
type Sample struct {
	Original  approx.TableUniqueName
	Sample    approx.TableUniqueName
	Ratio     float64
	CreatedAt time.Time
}

// Config configures the registry store
type Config struct {
	// DefaultSchema qualifies names registered without a schema
	DefaultSchema string
}

// Store reads and writes the sample registry
type Store struct {
	db            *sql.DB
	defaultSchema string
	cancel        context.CancelFunc
	done          chan struct{}
}

// New creates a registry store on db. Call Migrate first on a fresh
// database.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.DefaultSchema == "" {
		cfg.DefaultSchema = approx.DefaultSchema
	}
	return &Store{db: db, defaultSchema: cfg.DefaultSchema}
}

func (s *Store) qualify(n approx.TableUniqueName) approx.TableUniqueName {
	return n.Qualify(s.defaultSchema)
}

// Register records sample as a sample of original drawn at ratio. Registering
// the same pair again updates its ratio.
func (s *Store) Register(ctx context.Context, original, sample approx.TableUniqueName, ratio float64) error {
	if ratio <= 0 || ratio > 1 {
		return fmt.Errorf("sampling ratio %v out of range (0, 1]", ratio)
	}
	original, sample = s.qualify(original), s.qualify(sample)
	if original == sample {
		return fmt.Errorf("table %s cannot sample itself", original)
	}

	query, args, err := psq.Insert(samplesTable).
		Columns("original_schema", "original_table", "sample_schema", "sample_table", "sampling_ratio").
		Values(original.Schema, original.Table, sample.Schema, sample.Table, ratio).
		Suffix("ON CONFLICT (original_schema, original_table, sample_schema, sample_table) DO UPDATE SET sampling_ratio = EXCLUDED.sampling_ratio").
		ToSql()
	if err != nil {
		return fmt.Errorf("building register query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("registering sample %s for %s: %w", sample, original, err)
	}
	return nil
}

// Remove deletes a registered sample. Removing an unknown pair is not an
// error.
func (s *Store) Remove(ctx context.Context, original, sample approx.TableUniqueName) error {
	original, sample = s.qualify(original), s.qualify(sample)

	query, args, err := psq.Delete(samplesTable).
		Where(sq.Eq{
			"original_schema": original.Schema,
			"original_table":  original.Table,
			"sample_schema":   sample.Schema,
			"sample_table":    sample.Table,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building remove query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("removing sample %s for %s: %w", sample, original, err)
	}
	return nil
}

// Entries lists every registered sample, grouped by original table with the
// largest sampling ratio first.
func (s *Store) Entries(ctx context.Context) ([]Sample, error) {
	query, args, err := psq.Select(sampleColumns...).
		From(samplesTable).
		OrderBy("original_schema", "original_table", "sampling_ratio DESC", "sample_schema", "sample_table").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building entries query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []Sample
	for rows.Next() {
		var e Sample
		if err := rows.Scan(
			&e.Original.Schema, &e.Original.Table,
			&e.Sample.Schema, &e.Sample.Table,
			&e.Ratio, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		samples = append(samples, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sample rows: %w", err)
	}

	return samples, nil
}

// Load replaces the contents of target with the registry. When a table has
// several samples the one with the largest ratio is used.
func (s *Store) Load(ctx context.Context, target *catalog.Static) error {
	samples, err := s.Entries(ctx)
	if err != nil {
		return err
	}
	target.Replace(choose(samples))
	return nil
}

// choose keeps the first sample of each original table. samples must be in
// Entries order.
func choose(samples []Sample) []catalog.Entry {
	entries := make([]catalog.Entry, 0, len(samples))
	seen := make(map[approx.TableUniqueName]bool, len(samples))
	for _, smp := range samples {
		if seen[smp.Original] {
			continue
		}
		seen[smp.Original] = true
		entries = append(entries, catalog.Entry{Original: smp.Original, Sample: smp.Sample})
	}
	return entries
}

// StartRefreshRoutine reloads target from the registry every interval until
// Close is called. A failed reload keeps the previous mapping.
func (s *Store) StartRefreshRoutine(target *catalog.Static, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Load(ctx, target); err != nil && ctx.Err() == nil {
					slog.Warn("refreshing sample catalog failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the refresh goroutine and waits for it to exit. It is safe to
// call when no refresh was started.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	return nil
}
