// Package storage persists policies, published versions and enhancement jobs.
//
// # Backends
//
//   - memory: maps guarded by a mutex, for tests and the CLI's one-shot runs
//   - sqlite: embedded database through modernc.org/sqlite (driver "sqlite",
//     pure Go) or github.com/mattn/go-sqlite3 (driver "sqlite3", cgo)
//   - postgres: github.com/jackc/pgx/v5 through its database/sql driver
//
// Both SQL backends share one implementation; queries are written with ?
// placeholders and rebound for Postgres.
//
// # Concurrency
//
// InsertVersion is the single serialisation point for publishing: inside one
// transaction it checks that the new number is exactly max+1, writes the
// version and advances the policy's current version pointer. A unique
// (policy_id, number) constraint backs the check. Losers get
// ErrVersionConflict and are expected to retry.
//
// UpdatePolicy and ApplyEnhancement are compare-and-swap on the policy
// revision and return ErrRevisionConflict when the revision moved.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, &storage.Config{
//	    Backend: "sqlite",
//	    SQLite:  storage.SQLiteConfig{Path: "data/policyforge.db"},
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package storage
