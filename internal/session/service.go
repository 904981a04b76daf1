// Package session owns the tracking session lifecycle: one active
// session per game, de-duplicated draw events and the four-scope count
// cascade, all committed atomically.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/navali-creations/soothsayer-sub010/internal/events"
	"github.com/navali-creations/soothsayer-sub010/internal/logwatch"
	"github.com/navali-creations/soothsayer-sub010/internal/pricing"
	"github.com/navali-creations/soothsayer-sub010/internal/storage"
	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// ErrSessionActive is returned by Start when the game already has an
// active session.
var ErrSessionActive = errors.New("session already active for game")

// ErrNoActiveSession is returned by AddEvent when no session is
// tracking the game.
var ErrNoActiveSession = errors.New("no active session for game")

// SnapshotProvider supplies price snapshots for new sessions and the
// per-league auto-refresh timers. Satisfied by *pricing.Service.
type SnapshotProvider interface {
	GetSnapshotForSession(ctx context.Context, game models.Game, league string) (*pricing.Result, error)
	StartAutoRefresh(game models.Game, league string) error
	StopAutoRefresh(game models.Game, league string)
}

// active is the in-memory side of one running session: the processed-id
// set is the fast path, the session_events rows the durable one.
type active struct {
	session    *models.Session
	leagueName string
	processed  map[string]struct{}
	total      int
}

// Service is the session aggregator. All state transitions go through
// it; storage rows are never mutated behind its back.
type Service struct {
	db         *storage.DB
	sessions   *storage.SessionRepository
	leagues    *storage.LeagueRepository
	counts     *storage.CountRepository
	pricing    SnapshotProvider
	dispatcher *events.Dispatcher

	mu     sync.Mutex
	byGame map[models.Game]*active
}

// NewService creates a session aggregator. pricing and dispatcher may
// be nil; tracking then runs without valuations or notifications.
func NewService(db *storage.DB, pricingSvc SnapshotProvider, dispatcher *events.Dispatcher) *Service {
	return &Service{
		db:         db,
		sessions:   storage.NewSessionRepository(db),
		leagues:    storage.NewLeagueRepository(db),
		counts:     storage.NewCountRepository(db),
		pricing:    pricingSvc,
		dispatcher: dispatcher,
		byGame:     make(map[models.Game]*active),
	}
}

// Start begins a tracking session for the game in the named league.
// A second Start for the same game is rejected with ErrSessionActive
// until Stop. The processed-id cache starts empty: a unique id seen by
// an earlier, stopped session is a fresh event here.
func (s *Service) Start(ctx context.Context, game models.Game, leagueName string) (*models.Session, error) {
	if !game.Valid() {
		return nil, fmt.Errorf("unknown game %q", game)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byGame[game]; exists {
		return nil, ErrSessionActive
	}
	if _, err := s.sessions.GetActive(ctx, game); err == nil {
		return nil, ErrSessionActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	league, err := s.leagues.GetOrCreate(ctx, game, leagueName)
	if err != nil {
		return nil, fmt.Errorf("resolve league %s: %w", leagueName, err)
	}

	sess := &models.Session{
		Game:      game,
		LeagueID:  league.ID,
		StartedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.attachSnapshot(ctx, sess, game, leagueName)

	s.byGame[game] = &active{
		session:    sess,
		leagueName: leagueName,
		processed:  make(map[string]struct{}),
	}

	log.Printf("[Session] Started session %s for %s in league %s", sess.ID, game, leagueName)
	s.emitDrops(sess.ID, game, leagueName, 0, 0)
	return sess, nil
}

// attachSnapshot obtains a price snapshot and installs auto-refresh.
// Pricing trouble never blocks tracking; the session just runs unpriced
// until a later refresh succeeds.
func (s *Service) attachSnapshot(ctx context.Context, sess *models.Session, game models.Game, leagueName string) {
	if s.pricing == nil {
		return
	}

	result, err := s.pricing.GetSnapshotForSession(ctx, game, leagueName)
	if err != nil {
		log.Printf("[Session] No price snapshot for %s/%s, tracking unpriced: %v", game, leagueName, err)
	} else {
		if err := s.sessions.SetSnapshot(ctx, sess.ID, result.Snapshot.ID); err != nil {
			log.Printf("[Session] Failed to pin snapshot %s: %v", result.Snapshot.ID, err)
		} else {
			id := result.Snapshot.ID
			sess.PriceSnapshotID = &id
		}
	}

	if err := s.pricing.StartAutoRefresh(game, leagueName); err != nil && !errors.Is(err, pricing.ErrRefreshActive) {
		log.Printf("[Session] Auto-refresh install failed for %s/%s: %v", game, leagueName, err)
	}
}

// AddEvent records one observed card draw. The unique id is the
// de-duplication key: a repeat within the session's lifetime returns
// false with no effect. A genuinely new id inserts the processed-id row
// and increments all four count scopes in one transaction, so either
// every scope moves or none does.
func (s *Service) AddEvent(ctx context.Context, game models.Game, cardName, uniqueID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	act, exists := s.byGame[game]
	if !exists {
		return false, ErrNoActiveSession
	}

	added, err := s.addLocked(ctx, act, game, cardName, uniqueID)
	if err != nil {
		return false, err
	}
	if added {
		s.emitDrops(act.session.ID, game, act.leagueName, act.total, 1)
	}
	return added, nil
}

// addLocked performs the de-duplicated insert; caller holds s.mu.
func (s *Service) addLocked(ctx context.Context, act *active, game models.Game, cardName, uniqueID string) (bool, error) {
	if cardName == "" || uniqueID == "" {
		return false, nil
	}
	if _, dup := act.processed[uniqueID]; dup {
		return false, nil
	}

	now := time.Now().UTC()
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.sessions.AddEventTx(tx, act.session.ID, uniqueID, cardName, now); err != nil {
			return err
		}
		return s.counts.IncrementDropTx(tx, game, act.session.ID, act.leagueName, cardName, now)
	})
	if err != nil {
		return false, fmt.Errorf("record drop %s (%s): %w", cardName, uniqueID, err)
	}

	act.processed[uniqueID] = struct{}{}
	act.total++
	return true, nil
}

// ProcessTail absorbs one tail read for the game: extract draw events
// from the text, add the unseen ones, and emit a single drops update
// covering the batch. Text with no new events emits nothing.
func (s *Service) ProcessTail(ctx context.Context, game models.Game, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	act, exists := s.byGame[game]
	if !exists {
		return 0, ErrNoActiveSession
	}

	result := logwatch.ExtractDrops(text, act.processed)

	added := 0
	for cardName, drops := range result.Cards {
		for _, uniqueID := range drops.UniqueIDs {
			ok, err := s.addLocked(ctx, act, game, cardName, uniqueID)
			if err != nil {
				return added, err
			}
			if ok {
				added++
			}
		}
	}

	if added > 0 {
		s.emitDrops(act.session.ID, game, act.leagueName, act.total, added)
	}
	return added, nil
}

// Stop ends the game's session. Idempotent: stopping a game with no
// session is a no-op.
func (s *Service) Stop(ctx context.Context, game models.Game) error {
	s.mu.Lock()
	act, exists := s.byGame[game]
	if exists {
		delete(s.byGame, game)
	}
	s.mu.Unlock()

	if !exists {
		return nil
	}

	if s.pricing != nil {
		s.pricing.StopAutoRefresh(game, act.leagueName)
	}

	if err := s.sessions.End(ctx, act.session.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("end session %s: %w", act.session.ID, err)
	}

	log.Printf("[Session] Stopped session %s for %s (%d drops)", act.session.ID, game, act.total)
	return nil
}

// ReconcileStartup repairs sessions left active by a crash. Each one
// has its active flag cleared with ended_at left NULL, which is the
// corrupted display state; counts already cascaded are kept. Returns
// the sessions it repaired. Run once at boot, before any Start.
func (s *Service) ReconcileStartup(ctx context.Context) ([]*models.Session, error) {
	stale, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	for _, sess := range stale {
		if err := s.sessions.MarkInterrupted(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("mark session %s interrupted: %w", sess.ID, err)
		}
		sess.IsActive = false
		log.Printf("[Session] Reconciled interrupted session %s (%s)", sess.ID, sess.Game)
	}
	return stale, nil
}

// Active returns the in-memory active session for the game, if any.
func (s *Service) Active(game models.Game) (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	act, exists := s.byGame[game]
	if !exists {
		return nil, false
	}
	return act.session, true
}

// Counts returns the per-card counters of one scope, highest first.
func (s *Service) Counts(ctx context.Context, game models.Game, scope models.Scope, scopeKey string) ([]models.CardCount, error) {
	return s.counts.ListScope(ctx, game, scope, scopeKey)
}

func (s *Service) emitDrops(sessionID string, game models.Game, leagueName string, total, added int) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(events.Event{
		Type: events.TypeDropsUpdated,
		Payload: events.DropsUpdated{
			SessionID:  sessionID,
			Game:       string(game),
			League:     leagueName,
			TotalCount: total,
			Added:      added,
		},
	})
}
