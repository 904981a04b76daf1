package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

func TestCountRepository_IncrementCascadesFourScopes(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCountRepository(db)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return repo.IncrementDropTx(tx, models.GamePoE1, "sess-1", "Settlers", "The Doctor", time.Now())
	})
	require.NoError(t, err)

	for _, tc := range []struct {
		scope models.Scope
		key   string
	}{
		{models.ScopeSession, "sess-1"},
		{models.ScopeLeague, "Settlers"},
		{models.ScopeAllTime, models.AllTimeKey},
		{models.ScopeGlobal, ""},
	} {
		count, err := repo.GetCount(ctx, models.GamePoE1, tc.scope, tc.key, "The Doctor")
		require.NoError(t, err)
		assert.Equal(t, 1, count, "scope %s", tc.scope)
	}
}

func TestCountRepository_RepeatedIncrements(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCountRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
			return repo.IncrementDropTx(tx, models.GamePoE1, "sess-1", "Settlers", "Rain of Chaos", time.Now())
		})
		require.NoError(t, err)
	}

	count, err := repo.GetCount(ctx, models.GamePoE1, models.ScopeSession, "sess-1", "Rain of Chaos")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCountRepository_RollbackLeavesNoPartialScopes(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCountRepository(db)
	ctx := context.Background()

	boom := errors.New("simulated crash")
	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := repo.IncrementDropTx(tx, models.GamePoE1, "sess-1", "Settlers", "The Doctor", time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every scope must have rolled back together.
	for _, tc := range []struct {
		scope models.Scope
		key   string
	}{
		{models.ScopeSession, "sess-1"},
		{models.ScopeLeague, "Settlers"},
		{models.ScopeAllTime, models.AllTimeKey},
		{models.ScopeGlobal, ""},
	} {
		count, err := repo.GetCount(ctx, models.GamePoE1, tc.scope, tc.key, "The Doctor")
		require.NoError(t, err)
		assert.Zero(t, count, "scope %s must roll back", tc.scope)
	}
}

func TestCountRepository_ListScope(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCountRepository(db)
	ctx := context.Background()

	for _, card := range []string{"Rain of Chaos", "Rain of Chaos", "The Doctor"} {
		err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
			return repo.IncrementDropTx(tx, models.GamePoE1, "sess-1", "Settlers", card, time.Now())
		})
		require.NoError(t, err)
	}

	counts, err := repo.ListScope(ctx, models.GamePoE1, models.ScopeSession, "sess-1")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Rain of Chaos", counts[0].CardName)
	assert.Equal(t, 2, counts[0].Count)

	total, err := repo.TotalForScope(ctx, models.GamePoE1, models.ScopeSession, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestCountRepository_GamesIsolated(t *testing.T) {
	db := NewTestDB(t)
	repo := NewCountRepository(db)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return repo.IncrementDropTx(tx, models.GamePoE1, "s1", "Settlers", "The Doctor", time.Now())
	})
	require.NoError(t, err)

	count, err := repo.GetCount(ctx, models.GamePoE2, models.ScopeGlobal, "", "The Doctor")
	require.NoError(t, err)
	assert.Zero(t, count)
}
