// Package config loads approxq settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/approxq/approx"
	"github.com/vegasq/approxq/execution"
)

// Catalog sources
const (
	CatalogFile     = "file"
	CatalogPostgres = "postgres"
)

const (
	defaultMaxOpenConns = 10
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Config is the top-level configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Rewrite  RewriteConfig  `yaml:"rewrite"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig is the database queries run against
type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// CatalogConfig says where sample mappings come from
type CatalogConfig struct {
	Source string `yaml:"source"`
	File   string `yaml:"file"`

	// DSN of the Postgres registry; database.dsn when empty
	DSN             string        `yaml:"dsn"`
	Migrate         bool          `yaml:"migrate"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DefaultSchema   string        `yaml:"default_schema"`
}

// RewriteConfig tunes the rewriter and annotator
type RewriteConfig struct {
	Policy      string  `yaml:"policy"`
	ErrorMargin float64 `yaml:"error_margin"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file at path
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references and
// applying defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

var envVar = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = CatalogFile
	}
	if cfg.Catalog.DefaultSchema == "" {
		cfg.Catalog.DefaultSchema = approx.DefaultSchema
	}
	if cfg.Rewrite.Policy == "" {
		cfg.Rewrite.Policy = approx.PolicyBootstrapping
	}
	if cfg.Rewrite.ErrorMargin == 0 {
		cfg.Rewrite.ErrorMargin = approx.DefaultErrorMargin
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Driver == "" {
		errs = append(errs, "database.driver is required")
	} else if !slices.Contains(execution.Drivers(), c.Database.Driver) {
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of %s", c.Database.Driver, strings.Join(execution.Drivers(), ", ")))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Database.MaxOpenConns < 0 {
		errs = append(errs, "database.max_open_conns must not be negative")
	}

	switch c.Catalog.Source {
	case CatalogFile:
		if c.Catalog.File == "" {
			errs = append(errs, "catalog.file is required for the file source")
		}
	case CatalogPostgres:
		if c.Catalog.DSN == "" && c.Database.Driver != execution.DriverPostgres {
			errs = append(errs, "catalog.dsn is required unless database.driver is postgres")
		}
		if c.Catalog.RefreshInterval < 0 {
			errs = append(errs, "catalog.refresh_interval must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog.source %q must be %s or %s", c.Catalog.Source, CatalogFile, CatalogPostgres))
	}

	if _, err := approx.PolicyByName(c.Rewrite.Policy); err != nil {
		errs = append(errs, "rewrite.policy: "+err.Error())
	}
	if c.Rewrite.ErrorMargin < 0 || c.Rewrite.ErrorMargin >= 1 {
		errs = append(errs, "rewrite.error_margin must be in [0, 1)")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RegistryDSN is the connection string of the Postgres sample registry
func (c *CatalogConfig) RegistryDSN(db DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	return db.DSN
}

// SlogLevel parses Level (debug, info, warn, error)
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, err
	}
	return level, nil
}
