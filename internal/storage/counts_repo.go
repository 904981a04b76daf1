package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// CountRepository handles the cascading card drop counters.
type CountRepository struct {
	db *sql.DB
}

// NewCountRepository creates a new count repository.
func NewCountRepository(db *DB) *CountRepository {
	return &CountRepository{db: db.Conn()}
}

// IncrementDropTx cascades one card drop into all four scopes inside
// the caller's transaction: session, league, all-time and global rows
// move together or not at all.
func (r *CountRepository) IncrementDropTx(tx *sql.Tx, game models.Game, sessionID, leagueName, cardName string, now time.Time) error {
	scopes := []struct {
		scope models.Scope
		key   string
	}{
		{models.ScopeSession, sessionID},
		{models.ScopeLeague, leagueName},
		{models.ScopeAllTime, models.AllTimeKey},
		{models.ScopeGlobal, ""},
	}

	for _, s := range scopes {
		_, err := tx.Exec(`
			INSERT INTO card_counts (game, scope, scope_key, card_name, count, last_updated)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT (game, scope, scope_key, card_name)
			DO UPDATE SET count = count + 1, last_updated = excluded.last_updated
		`, string(game), string(s.scope), s.key, cardName, formatTime(now))
		if err != nil {
			return fmt.Errorf("increment %s count: %w", s.scope, err)
		}
	}
	return nil
}

// GetCount returns the counter for one key, zero when the row is
// absent.
func (r *CountRepository) GetCount(ctx context.Context, game models.Game, scope models.Scope, scopeKey, cardName string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count FROM card_counts
		WHERE game = ? AND scope = ? AND scope_key = ? AND card_name = ?
	`, string(game), string(scope), scopeKey, cardName).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query card count: %w", err)
	}
	return count, nil
}

// ListScope returns every counter row in one scope, highest counts
// first.
func (r *CountRepository) ListScope(ctx context.Context, game models.Game, scope models.Scope, scopeKey string) ([]models.CardCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT game, scope, scope_key, card_name, count, last_updated
		FROM card_counts
		WHERE game = ? AND scope = ? AND scope_key = ?
		ORDER BY count DESC, card_name
	`, string(game), string(scope), scopeKey)
	if err != nil {
		return nil, fmt.Errorf("query scope counts: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // read-only cursor
	}()

	var counts []models.CardCount
	for rows.Next() {
		var (
			c                 models.CardCount
			gameCol, scopeCol string
			lastUpdated       string
		)
		if err := rows.Scan(&gameCol, &scopeCol, &c.ScopeKey, &c.CardName, &c.Count, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scan card count: %w", err)
		}
		c.Game = models.Game(gameCol)
		c.Scope = models.Scope(scopeCol)
		if c.LastUpdated, err = parseTime(lastUpdated); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scope counts: %w", err)
	}
	return counts, nil
}

// TotalForScope sums every counter in one scope.
func (r *CountRepository) TotalForScope(ctx context.Context, game models.Game, scope models.Scope, scopeKey string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(count), 0) FROM card_counts
		WHERE game = ? AND scope = ? AND scope_key = ?
	`, string(game), string(scope), scopeKey).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum scope counts: %w", err)
	}
	return total, nil
}
