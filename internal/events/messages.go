package events

import "time"

// DropsUpdated is the payload for drops:updated events, sent after a
// session absorbs newly observed card draws.
type DropsUpdated struct {
	SessionID  string `json:"sessionId"`
	Game       string `json:"game"`
	League     string `json:"league"`
	TotalCount int    `json:"totalCount"` // cumulative drops this session
	Added      int    `json:"added"`      // drops added by this update
}

// SnapshotMeta is the payload for snapshot:created and snapshot:reused
// events.
type SnapshotMeta struct {
	SnapshotID string    `json:"snapshotId"`
	Game       string    `json:"game"`
	League     string    `json:"league"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Source     string    `json:"source"` // "remote", "cache" or "local-fallback"
}

// RefreshState is the payload for refresh:started and refresh:stopped
// events.
type RefreshState struct {
	Game   string `json:"game"`
	League string `json:"league"`
}

// ProcessLiveness is the payload for process:liveness events.
type ProcessLiveness struct {
	IsRunning   bool   `json:"isRunning"`
	ProcessName string `json:"processName"`
}
