package storage

import (
	"fmt"
	"time"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// Config selects and configures a storage backend.
type Config struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "sqlite".
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/policyforge.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (modernc) or "sqlite3" (mattn).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	// DSN is a pgx connection string.
	DSN string `yaml:"dsn"`

	// MaxOpenConns bounds the connection pool.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns bounds idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime recycles connections.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendSQLite,
		SQLite: SQLiteConfig{
			Path:        "data/policyforge.db",
			Driver:      DriverModernc,
			BusyTimeout: 5 * time.Second,
			WALMode:     true,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
	}
}

// Validate checks the configuration for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
		if c.SQLite.Driver != DriverModernc && c.SQLite.Driver != DriverMattn {
			return fmt.Errorf("storage.sqlite.driver must be %q or %q, got %q", DriverModernc, DriverMattn, c.SQLite.Driver)
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}
