package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver "pgx"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver "sqlite3"
	_ "modernc.org/sqlite"             // SQLite driver "sqlite"
)

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMemory:
		logger.Info("memory storage initialized")
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLite, logger)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.Postgres, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// sqliteDSN builds a DSN carrying the busy timeout, journal mode and
// immediate write transactions in the parameter style of each driver.
func sqliteDSN(cfg SQLiteConfig) string {
	ms := cfg.BusyTimeout.Milliseconds()
	if ms <= 0 {
		ms = 5000
	}
	switch cfg.Driver {
	case DriverMattn:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate&_foreign_keys=on", cfg.Path, ms)
		if cfg.WALMode {
			dsn += "&_journal_mode=WAL"
		}
		return dsn
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate", cfg.Path, ms)
		if cfg.WALMode {
			dsn += "&_pragma=journal_mode(WAL)"
		}
		return dsn
	}
}

// OpenSQLite opens a SQLite database with the configured driver.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig, logger *slog.Logger) (*SQLStore, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStorageError("sqlite", "open", err)
		}
	}
	db, err := sql.Open(cfg.Driver, sqliteDSN(cfg))
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s, err := NewSQLStore(ctx, db, DialectSQLite, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("SQLite storage initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

// OpenPostgres opens a Postgres database through pgx.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*SQLStore, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, newStorageError("postgres", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newStorageError("postgres", "ping", err)
	}

	s, err := NewSQLStore(ctx, db, DialectPostgres, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("Postgres storage initialized", "max_open_conns", cfg.MaxOpenConns)
	return s, nil
}
