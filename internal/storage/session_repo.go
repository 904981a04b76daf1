package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// SessionRepository handles database operations for sessions and their
// processed event ids.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db.Conn()}
}

// Create inserts a new active session. A missing ID is generated. The
// partial unique index on active sessions rejects a second active
// session for the same game.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	session.IsActive = true

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, game, league_id, started_at, ended_at, is_active, price_snapshot_id)
		VALUES (?, ?, ?, ?, NULL, 1, ?)
	`, session.ID, string(session.Game), session.LeagueID, formatTime(session.StartedAt), session.PriceSnapshotID)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetActive loads the active session for a game. Returns ErrNotFound
// when no session is active.
func (r *SessionRepository) GetActive(ctx context.Context, game models.Game) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, game, league_id, started_at, ended_at, is_active, price_snapshot_id
		FROM sessions
		WHERE game = ? AND is_active = 1
	`, string(game))
	return scanSession(row)
}

// Get loads a session by id. Returns ErrNotFound when absent.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, game, league_id, started_at, ended_at, is_active, price_snapshot_id
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

// ListActive returns every session still flagged active, across games.
// Used by the start-up reconciliation pass.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game, league_id, started_at, ended_at, is_active, price_snapshot_id
		FROM sessions
		WHERE is_active = 1
		ORDER BY started_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // read-only cursor
	}()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active sessions: %w", err)
	}
	return sessions, nil
}

// End records a clean stop: ended_at is set and the active flag
// cleared. Ending an already ended session changes nothing.
func (r *SessionRepository) End(ctx context.Context, id string, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET ended_at = ?, is_active = 0
		WHERE id = ? AND is_active = 1
	`, formatTime(when), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// MarkInterrupted clears the active flag without recording an end.
// is_active = 0 with a NULL ended_at is how a corrupted session reads
// back from the store; the count data is preserved.
func (r *SessionRepository) MarkInterrupted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET is_active = 0
		WHERE id = ? AND is_active = 1
	`, id)
	if err != nil {
		return fmt.Errorf("mark session interrupted: %w", err)
	}
	return nil
}

// SetSnapshot links the session to the price snapshot valuing it.
func (r *SessionRepository) SetSnapshot(ctx context.Context, id, snapshotID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET price_snapshot_id = ?
		WHERE id = ?
	`, snapshotID, id)
	if err != nil {
		return fmt.Errorf("set session snapshot: %w", err)
	}
	return nil
}

// AddEventTx records one processed unique id for the session inside the
// caller's transaction, alongside the count increments for the same
// event.
func (r *SessionRepository) AddEventTx(tx *sql.Tx, sessionID, uniqueID, cardName string, now time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO session_events (session_id, unique_id, card_name, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, uniqueID, cardName, formatTime(now))
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// LoadEventIDs returns the set of unique ids already processed by the
// session.
func (r *SessionRepository) LoadEventIDs(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT unique_id FROM session_events WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // read-only cursor
	}()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*models.Session, error) {
	session, err := scanSessionFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	return session, err
}

func scanSessionRows(rows *sql.Rows) (*models.Session, error) {
	return scanSessionFrom(rows)
}

func scanSessionFrom(scanner rowScanner) (*models.Session, error) {
	var (
		session   models.Session
		game      string
		startedAt string
		endedAt   *string
		isActive  int
	)
	err := scanner.Scan(&session.ID, &game, &session.LeagueID, &startedAt, &endedAt, &isActive, &session.PriceSnapshotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	session.Game = models.Game(game)
	session.IsActive = isActive != 0
	if session.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if session.EndedAt, err = parseNullableTime(endedAt); err != nil {
		return nil, err
	}
	return &session, nil
}
