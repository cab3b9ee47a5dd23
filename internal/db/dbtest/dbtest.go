// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/questboard/questboard/internal/db"
)

const pragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Open returns a fresh database under t.TempDir with every migration applied.
// Migrations share goose's global state, so callers must not run in parallel.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	database := OpenEmpty(t)
	err := db.RunMigrations(database.DB, "sqlite")
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return database
}

// OpenEmpty returns a fresh database without any schema.
func OpenEmpty(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := db.Init("sqlite", path+pragmas)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return database
}
