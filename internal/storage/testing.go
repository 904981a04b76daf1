package storage

import (
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated throwaway database in a test temp
// directory. This helper is exported for use in other package tests.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "soothsayer_test.db"))
	cfg.AutoMigrate = true

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close() //nolint:errcheck // test teardown
	})
	return db
}
