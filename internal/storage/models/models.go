// Package models defines the persisted aggregates of the tracking
// pipeline.
package models

import "time"

// Game identifies which client a record belongs to.
type Game string

const (
	GamePoE1 Game = "poe1"
	GamePoE2 Game = "poe2"
)

// Valid reports whether g is a known game.
func (g Game) Valid() bool {
	return g == GamePoE1 || g == GamePoE2
}

// Scope is one of the four aggregation levels a card drop cascades into.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeLeague  Scope = "league"
	ScopeAllTime Scope = "all-time"
	ScopeGlobal  Scope = "global"
)

// AllTimeKey is the scope key sentinel for the all-time scope. The
// global scope uses an empty key.
const AllTimeKey = "all-time"

// League is a named economy a session plays in. Created lazily on first
// reference by name.
type League struct {
	ID        string
	Game      Game
	Name      string
	StartDate *time.Time
	CreatedAt time.Time
}

// Session is the aggregate root of one tracking run.
type Session struct {
	ID              string
	Game            Game
	LeagueID        string
	StartedAt       time.Time
	EndedAt         *time.Time
	IsActive        bool
	PriceSnapshotID *string
}

// IsCorrupted reports the derived display state for a session whose
// owning process died without a clean stop: the active flag was cleared
// at reconcile time but no end was ever recorded.
func (s *Session) IsCorrupted() bool {
	return !s.IsActive && s.EndedAt == nil
}

// CardCount is one counter row, keyed by (game, scope, scope key, card).
type CardCount struct {
	Game        Game
	Scope       Scope
	ScopeKey    string
	CardName    string
	Count       int
	LastUpdated time.Time
}

// CardPrice is the market valuation of one card.
type CardPrice struct {
	ChaosValue  float64 `json:"chaosValue"`
	DivineValue float64 `json:"divineValue"`
	StackSize   int     `json:"stackSize,omitempty"`
}

// PriceTable holds the priced cards of one market source.
type PriceTable struct {
	ChaosToDivineRatio float64              `json:"chaosToDivineRatio"`
	CardPrices         map[string]CardPrice `json:"cardPrices"`
}

// PriceSnapshot is an immutable, timestamped capture of market pricing
// for one league. A refresh creates a new row, never mutates an old one.
type PriceSnapshot struct {
	ID        string
	LeagueID  string
	FetchedAt time.Time
	Exchange  PriceTable
	Stash     PriceTable
}
