// Package execution runs rewritten queries through database/sql.
package execution

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/lib/pq"                         // postgres
	_ "github.com/mattn/go-sqlite3"               // sqlite3
	_ "github.com/trinodb/trino-go-client/trino" // trino

	"github.com/vegasq/approxq/approx"
)

// Drivers that Open accepts
const (
	DriverPostgres = "postgres"
	DriverTrino    = "trino"
	DriverSQLite   = "sqlite3"
)

var knownDrivers = map[string]bool{
	DriverPostgres: true,
	DriverTrino:    true,
	DriverSQLite:   true,
}

// Config holds connection settings
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// DB executes queries on a *sql.DB. It implements approx.Executor.
type DB struct {
	db *sql.DB
}

// New wraps an open database handle
func New(db *sql.DB) *DB {
	return &DB{db: db}
}

// Open connects with cfg and verifies the connection
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if !knownDrivers[cfg.Driver] {
		return nil, fmt.Errorf("unsupported driver %q (supported: %v)", cfg.Driver, Drivers())
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Driver, err)
	}

	return &DB{db: db}, nil
}

// Drivers lists the supported driver names
func Drivers() []string {
	names := make([]string, 0, len(knownDrivers))
	for name := range knownDrivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteQuery runs sql and returns its rows untouched. Errors from the
// driver are returned as they are.
func (d *DB) ExecuteQuery(ctx context.Context, sql string) (approx.Rows, error) {
	rows, err := d.db.QueryContext(ctx, sql)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SQL returns the underlying handle
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}
