package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/navali-creations/soothsayer-sub010/internal/events"
	"github.com/navali-creations/soothsayer-sub010/internal/storage"
	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// ErrNoSnapshotAvailable is returned when the remote service is
// unreachable and no local snapshot exists to fall back on. It is the
// one pricing failure surfaced to the UI as actionable.
var ErrNoSnapshotAvailable = errors.New("no price snapshot available")

// ErrRefreshActive is returned when auto-refresh is already installed
// for a (game, league) key.
var ErrRefreshActive = errors.New("auto-refresh already active")

// ServiceConfig holds the cache policy's time constants. The reuse
// threshold and the auto-refresh interval are deliberately different:
// the threshold matches the remote source's update cadence so app
// restarts inside one cadence window never refetch, while the refresh
// interval paces background refetches during long sessions.
type ServiceConfig struct {
	// ReuseThreshold is the maximum snapshot age still served without
	// a new fetch.
	// Default: 4 hours
	ReuseThreshold time.Duration

	// AutoRefreshInterval is the cadence of installed refresh timers.
	// Default: 8 hours
	AutoRefreshInterval time.Duration

	// FallbackCeiling bounds how old a local snapshot may be and still
	// serve as a remote-failure fallback.
	// Default: 30 days
	FallbackCeiling time.Duration
}

// DefaultServiceConfig returns the default cache policy.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ReuseThreshold:      4 * time.Hour,
		AutoRefreshInterval: 8 * time.Hour,
		FallbackCeiling:     30 * 24 * time.Hour,
	}
}

// Result is a priced snapshot plus the derived per-league card tiers.
type Result struct {
	Snapshot *models.PriceSnapshot
	Tiers    map[string]Tier

	// Source records how the snapshot was obtained: "remote", "cache"
	// or "local-fallback".
	Source string
}

type refreshKey struct {
	game   models.Game
	league string
}

// Service owns the price snapshot cache: fetch, store, reuse and
// auto-refresh per league, with remote-to-local fallback.
type Service struct {
	cfg        ServiceConfig
	fetcher    Fetcher
	leagues    *storage.LeagueRepository
	snapshots  *storage.SnapshotRepository
	dispatcher *events.Dispatcher

	mu         sync.Mutex
	refreshers map[refreshKey]chan struct{}
}

// NewService creates a pricing service.
func NewService(cfg *ServiceConfig, fetcher Fetcher, db *storage.DB, dispatcher *events.Dispatcher) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	return &Service{
		cfg:        *cfg,
		fetcher:    fetcher,
		leagues:    storage.NewLeagueRepository(db),
		snapshots:  storage.NewSnapshotRepository(db),
		dispatcher: dispatcher,
		refreshers: make(map[refreshKey]chan struct{}),
	}
}

// GetSnapshotForSession returns the snapshot a new session should value
// drops with. A local snapshot younger than the reuse threshold is
// served as-is with its tiers recomputed; otherwise a fresh snapshot is
// fetched, falling back to the newest local one when the remote service
// fails.
func (s *Service) GetSnapshotForSession(ctx context.Context, game models.Game, leagueName string) (*Result, error) {
	league, err := s.leagues.GetOrCreate(ctx, game, leagueName)
	if err != nil {
		return nil, fmt.Errorf("resolve league %s: %w", leagueName, err)
	}

	snap, err := s.snapshots.GetRecent(ctx, league.ID, s.cfg.ReuseThreshold)
	if err == nil {
		result := &Result{Snapshot: snap, Tiers: ClassifyRarity(snap.Exchange), Source: "cache"}
		s.emit(events.TypeSnapshotReused, snapshotMeta(snap, game, leagueName, result.Source))
		return result, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return s.fetchAndStore(ctx, game, league, leagueName)
}

// Refresh forces a fresh fetch regardless of any reusable snapshot.
func (s *Service) Refresh(ctx context.Context, game models.Game, leagueName string) (*Result, error) {
	league, err := s.leagues.GetOrCreate(ctx, game, leagueName)
	if err != nil {
		return nil, fmt.Errorf("resolve league %s: %w", leagueName, err)
	}
	return s.fetchAndStore(ctx, game, league, leagueName)
}

// fetchAndStore fetches remote prices and persists them as a new
// immutable snapshot row. A remote failure is recovered from the
// newest local snapshot within the fallback ceiling; only when both
// sources are empty does the caller see an error.
func (s *Service) fetchAndStore(ctx context.Context, game models.Game, league *models.League, leagueName string) (*Result, error) {
	resp, fetchErr := s.fetcher.FetchPrices(ctx, game, leagueName)
	if fetchErr != nil {
		log.Printf("[Pricing] Remote fetch failed for %s/%s, trying local fallback: %v", game, leagueName, fetchErr)

		snap, err := s.snapshots.GetRecent(ctx, league.ID, s.cfg.FallbackCeiling)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("remote fetch failed (%v): %w", fetchErr, ErrNoSnapshotAvailable)
		}
		if err != nil {
			return nil, err
		}

		result := &Result{Snapshot: snap, Tiers: ClassifyRarity(snap.Exchange), Source: "local-fallback"}
		s.emit(events.TypeSnapshotReused, snapshotMeta(snap, game, leagueName, result.Source))
		return result, nil
	}

	snap := &models.PriceSnapshot{
		LeagueID:  league.ID,
		FetchedAt: resp.FetchedAt,
		Exchange:  resp.Exchange,
		Stash:     resp.Stash,
	}
	if err := s.snapshots.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	result := &Result{Snapshot: snap, Tiers: ClassifyRarity(snap.Exchange), Source: "remote"}
	s.emit(events.TypeSnapshotCreated, snapshotMeta(snap, game, leagueName, result.Source))
	return result, nil
}

// StartAutoRefresh installs a recurring refresh timer for the key.
// A second install for the same key is rejected with ErrRefreshActive.
func (s *Service) StartAutoRefresh(game models.Game, leagueName string) error {
	key := refreshKey{game: game, league: leagueName}

	s.mu.Lock()
	if _, exists := s.refreshers[key]; exists {
		s.mu.Unlock()
		return ErrRefreshActive
	}
	stop := make(chan struct{})
	s.refreshers[key] = stop
	s.mu.Unlock()

	go s.refreshLoop(game, leagueName, stop)

	s.emit(events.TypeRefreshStarted, events.RefreshState{Game: string(game), League: leagueName})
	log.Printf("[Pricing] Auto-refresh started for %s/%s", game, leagueName)
	return nil
}

// StopAutoRefresh removes the refresh timer for the key. Safe to call
// at any time, including before StartAutoRefresh and twice in a row.
func (s *Service) StopAutoRefresh(game models.Game, leagueName string) {
	key := refreshKey{game: game, league: leagueName}

	s.mu.Lock()
	stop, exists := s.refreshers[key]
	if exists {
		delete(s.refreshers, key)
	}
	s.mu.Unlock()

	if !exists {
		return
	}
	close(stop)

	s.emit(events.TypeRefreshStopped, events.RefreshState{Game: string(game), League: leagueName})
	log.Printf("[Pricing] Auto-refresh stopped for %s/%s", game, leagueName)
}

// StopAll removes every installed refresh timer.
func (s *Service) StopAll() {
	s.mu.Lock()
	keys := make([]refreshKey, 0, len(s.refreshers))
	for key := range s.refreshers {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.StopAutoRefresh(key.game, key.league)
	}
}

// refreshLoop re-fetches at the configured cadence until stopped.
// Failures are logged and retried next interval; a long-running session
// keeps its last good snapshot in the meantime.
func (s *Service) refreshLoop(game models.Game, leagueName string, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.AutoRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			if _, err := s.Refresh(ctx, game, leagueName); err != nil {
				log.Printf("[Pricing] Auto-refresh failed for %s/%s: %v", game, leagueName, err)
			}
			cancel()
		}
	}
}

func (s *Service) emit(eventType string, payload any) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(events.Event{Type: eventType, Payload: payload})
}

func snapshotMeta(snap *models.PriceSnapshot, game models.Game, leagueName, source string) events.SnapshotMeta {
	return events.SnapshotMeta{
		SnapshotID: snap.ID,
		Game:       string(game),
		League:     leagueName,
		FetchedAt:  snap.FetchedAt,
		Source:     source,
	}
}
