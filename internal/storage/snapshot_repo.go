package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// SnapshotRepository handles database operations for price snapshots.
// Snapshots are immutable: a refresh inserts a new row and old rows are
// never updated.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db.Conn()}
}

// Create inserts a new snapshot row. A missing ID is generated.
func (r *SnapshotRepository) Create(ctx context.Context, snap *models.PriceSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}

	exchange, err := json.Marshal(snap.Exchange)
	if err != nil {
		return fmt.Errorf("marshal exchange prices: %w", err)
	}
	stash, err := json.Marshal(snap.Stash)
	if err != nil {
		return fmt.Errorf("marshal stash prices: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (id, league_id, fetched_at, exchange, stash)
		VALUES (?, ?, ?, ?, ?)
	`, snap.ID, snap.LeagueID, formatTime(snap.FetchedAt), string(exchange), string(stash))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetRecent loads the newest snapshot for a league no older than
// maxAge. Returns ErrNotFound when no snapshot qualifies.
func (r *SnapshotRepository) GetRecent(ctx context.Context, leagueID string, maxAge time.Duration) (*models.PriceSnapshot, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	row := r.db.QueryRowContext(ctx, `
		SELECT id, league_id, fetched_at, exchange, stash
		FROM price_snapshots
		WHERE league_id = ? AND fetched_at >= ?
		ORDER BY fetched_at DESC
		LIMIT 1
	`, leagueID, formatTime(cutoff))
	return scanSnapshot(row)
}

// Load loads a snapshot by id. Returns ErrNotFound when absent.
func (r *SnapshotRepository) Load(ctx context.Context, id string) (*models.PriceSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, league_id, fetched_at, exchange, stash
		FROM price_snapshots
		WHERE id = ?
	`, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*models.PriceSnapshot, error) {
	var (
		snap      models.PriceSnapshot
		fetchedAt string
		exchange  string
		stash     string
	)
	err := row.Scan(&snap.ID, &snap.LeagueID, &fetchedAt, &exchange, &stash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	if snap.FetchedAt, err = parseTime(fetchedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(exchange), &snap.Exchange); err != nil {
		return nil, fmt.Errorf("unmarshal exchange prices: %w", err)
	}
	if err := json.Unmarshal([]byte(stash), &snap.Stash); err != nil {
		return nil, fmt.Errorf("unmarshal stash prices: %w", err)
	}
	return &snap, nil
}
