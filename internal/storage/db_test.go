package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("NilConfig", func(t *testing.T) {
		_, err := Open(nil)
		assert.Error(t, err)
	})

	t.Run("CreatesParentDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "soothsayer.db")
		cfg := DefaultConfig(path)
		cfg.AutoMigrate = true

		db, err := Open(cfg)
		require.NoError(t, err)
		assert.NoError(t, db.Ping())
		assert.Equal(t, path, db.Path())
		require.NoError(t, db.Close())
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	db := NewTestDB(t)

	// A second run must be a no-op, not an error.
	require.NoError(t, db.Migrate())

	version, dirty, err := db.MigrationVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))
}
