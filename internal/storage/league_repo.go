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

// LeagueRepository handles database operations for leagues.
type LeagueRepository struct {
	db *sql.DB
}

// NewLeagueRepository creates a new league repository.
func NewLeagueRepository(db *DB) *LeagueRepository {
	return &LeagueRepository{db: db.Conn()}
}

// Create inserts a new league. A missing ID is generated.
func (r *LeagueRepository) Create(ctx context.Context, league *models.League) error {
	if league.ID == "" {
		league.ID = uuid.NewString()
	}
	if league.CreatedAt.IsZero() {
		league.CreatedAt = time.Now().UTC()
	}

	var startDate *string
	if league.StartDate != nil {
		s := formatTime(*league.StartDate)
		startDate = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leagues (id, game, name, start_date, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, league.ID, string(league.Game), league.Name, startDate, formatTime(league.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert league: %w", err)
	}
	return nil
}

// GetByName loads a league by game and name. Returns ErrNotFound when
// no such league exists.
func (r *LeagueRepository) GetByName(ctx context.Context, game models.Game, name string) (*models.League, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, game, name, start_date, created_at
		FROM leagues
		WHERE game = ? AND name = ?
	`, string(game), name)
	return scanLeague(row)
}

// GetOrCreate resolves a league by name, creating it lazily on first
// reference.
func (r *LeagueRepository) GetOrCreate(ctx context.Context, game models.Game, name string) (*models.League, error) {
	league, err := r.GetByName(ctx, game, name)
	if err == nil {
		return league, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	league = &models.League{Game: game, Name: name}
	if err := r.Create(ctx, league); err != nil {
		return nil, err
	}
	return league, nil
}

// Get loads a league by id. Returns ErrNotFound when absent.
func (r *LeagueRepository) Get(ctx context.Context, id string) (*models.League, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, game, name, start_date, created_at
		FROM leagues
		WHERE id = ?
	`, id)
	return scanLeague(row)
}

func scanLeague(row *sql.Row) (*models.League, error) {
	var (
		league    models.League
		game      string
		startDate *string
		createdAt string
	)
	err := row.Scan(&league.ID, &game, &league.Name, &startDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("league: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan league: %w", err)
	}

	league.Game = models.Game(game)
	if league.StartDate, err = parseNullableTime(startDate); err != nil {
		return nil, err
	}
	if league.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &league, nil
}
