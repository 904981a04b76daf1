package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navali-creations/soothsayer-sub010/internal/events"
	"github.com/navali-creations/soothsayer-sub010/internal/storage"
	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

// fakeFetcher counts calls and can be told to fail.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeFetcher) FetchPrices(_ context.Context, _ models.Game, _ string) (*PriceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("remote unavailable")
	}
	return &PriceResponse{
		FetchedAt: time.Now().UTC(),
		Exchange: models.PriceTable{
			ChaosToDivineRatio: 180,
			CardPrices: map[string]models.CardPrice{
				"The Doctor":    {ChaosValue: 2200},
				"Rain of Chaos": {ChaosValue: 0.4},
			},
		},
		Stash: models.PriceTable{ChaosToDivineRatio: 180},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// eventSink captures dispatched events.
type eventSink struct {
	mu   sync.Mutex
	seen []events.Event
}

func (e *eventSink) OnEvent(ev events.Event) error {
	e.mu.Lock()
	e.seen = append(e.seen, ev)
	e.mu.Unlock()
	return nil
}

func (e *eventSink) Name() string { return "test-sink" }

func (e *eventSink) ShouldHandle(string) bool { return true }

func (e *eventSink) types() (out []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.seen {
		out = append(out, ev.Type)
	}
	return out
}

func newTestService(t *testing.T, fetcher Fetcher, cfg *ServiceConfig) (*Service, *eventSink) {
	t.Helper()
	db := storage.NewTestDB(t)
	dispatcher := events.NewDispatcher()
	sink := &eventSink{}
	dispatcher.Register(sink)
	return NewService(cfg, fetcher, db, dispatcher), sink
}

func TestService_FirstCallFetchesAndPersists(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, sink := newTestService(t, fetcher, nil)

	result, err := svc.GetSnapshotForSession(context.Background(), models.GamePoE1, "Settlers")
	require.NoError(t, err)
	assert.Equal(t, "remote", result.Source)
	assert.NotEmpty(t, result.Snapshot.ID)
	assert.Equal(t, TierJackpot, result.Tiers["The Doctor"])
	assert.Equal(t, 1, fetcher.callCount())
	assert.Contains(t, sink.types(), events.TypeSnapshotCreated)
}

func TestService_ReuseWithinThreshold(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, sink := newTestService(t, fetcher, nil)
	ctx := context.Background()

	first, err := svc.GetSnapshotForSession(ctx, models.GamePoE1, "Settlers")
	require.NoError(t, err)

	second, err := svc.GetSnapshotForSession(ctx, models.GamePoE1, "Settlers")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.callCount(), "second call within the reuse threshold must not refetch")
	assert.Equal(t, first.Snapshot.ID, second.Snapshot.ID)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, TierJackpot, second.Tiers["The Doctor"], "tiers are recomputed on reuse")
	assert.Contains(t, sink.types(), events.TypeSnapshotReused)
}

func TestService_RemoteFailureFallsBackToLocal(t *testing.T) {
	fetcher := &fakeFetcher{}
	cfg := DefaultServiceConfig()
	cfg.ReuseThreshold = time.Nanosecond // force refetch on every call
	svc, sink := newTestService(t, fetcher, cfg)
	ctx := context.Background()

	_, err := svc.GetSnapshotForSession(ctx, models.GamePoE1, "Settlers")
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.fail = true
	fetcher.mu.Unlock()

	result, err := svc.GetSnapshotForSession(ctx, models.GamePoE1, "Settlers")
	require.NoError(t, err, "remote failure with a local snapshot must not surface an error")
	assert.Equal(t, "local-fallback", result.Source)
	assert.Contains(t, sink.types(), events.TypeSnapshotReused)
}

func TestService_NoRemoteNoLocal(t *testing.T) {
	fetcher := &fakeFetcher{fail: true}
	svc, _ := newTestService(t, fetcher, nil)

	_, err := svc.GetSnapshotForSession(context.Background(), models.GamePoE1, "Settlers")
	assert.ErrorIs(t, err, ErrNoSnapshotAvailable)
}

func TestService_RefreshAlwaysFetches(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, _ := newTestService(t, fetcher, nil)
	ctx := context.Background()

	first, err := svc.Refresh(ctx, models.GamePoE1, "Settlers")
	require.NoError(t, err)
	second, err := svc.Refresh(ctx, models.GamePoE1, "Settlers")
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.callCount())
	assert.NotEqual(t, first.Snapshot.ID, second.Snapshot.ID, "each refresh persists a new immutable row")
}

func TestService_AutoRefresh(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, sink := newTestService(t, fetcher, nil)

	require.NoError(t, svc.StartAutoRefresh(models.GamePoE1, "Settlers"))
	err := svc.StartAutoRefresh(models.GamePoE1, "Settlers")
	assert.ErrorIs(t, err, ErrRefreshActive)

	// A different key installs independently.
	require.NoError(t, svc.StartAutoRefresh(models.GamePoE2, "Standard"))

	svc.StopAutoRefresh(models.GamePoE1, "Settlers")
	svc.StopAutoRefresh(models.GamePoE1, "Settlers") // idempotent
	svc.StopAutoRefresh(models.GamePoE1, "never-started")

	// Reinstall after stop works.
	require.NoError(t, svc.StartAutoRefresh(models.GamePoE1, "Settlers"))
	svc.StopAll()

	types := sink.types()
	assert.Contains(t, types, events.TypeRefreshStarted)
	assert.Contains(t, types, events.TypeRefreshStopped)
}

func TestService_AutoRefreshTicks(t *testing.T) {
	fetcher := &fakeFetcher{}
	cfg := DefaultServiceConfig()
	cfg.AutoRefreshInterval = 20 * time.Millisecond
	svc, _ := newTestService(t, fetcher, cfg)

	require.NoError(t, svc.StartAutoRefresh(models.GamePoE1, "Settlers"))
	time.Sleep(70 * time.Millisecond)
	svc.StopAutoRefresh(models.GamePoE1, "Settlers")

	calls := fetcher.callCount()
	assert.GreaterOrEqual(t, calls, 2, "auto-refresh must refetch on its cadence")

	// No further fetches after stop.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, fetcher.callCount())
}
