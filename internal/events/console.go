package events

import "log"

// ConsoleObserver prints pipeline events to the process log. It is the
// default observer when no frontend bridge is attached.
type ConsoleObserver struct {
	// Verbose includes high-churn events (process liveness).
	Verbose bool
}

// NewConsoleObserver creates a console observer.
func NewConsoleObserver(verbose bool) *ConsoleObserver {
	return &ConsoleObserver{Verbose: verbose}
}

// Name identifies the observer in logs.
func (o *ConsoleObserver) Name() string {
	return "console"
}

// ShouldHandle accepts every event type; liveness only when verbose.
func (o *ConsoleObserver) ShouldHandle(eventType string) bool {
	if eventType == TypeProcessLiveness {
		return o.Verbose
	}
	return true
}

// OnEvent prints one event.
func (o *ConsoleObserver) OnEvent(event Event) error {
	switch payload := event.Payload.(type) {
	case DropsUpdated:
		log.Printf("[Console] %s: +%d drops, %d this session (%s/%s)",
			event.Type, payload.Added, payload.TotalCount, payload.Game, payload.League)
	case SnapshotMeta:
		log.Printf("[Console] %s: snapshot %s for %s/%s (source=%s, fetched %s)",
			event.Type, payload.SnapshotID, payload.Game, payload.League,
			payload.Source, payload.FetchedAt.Format("2006-01-02 15:04:05"))
	case RefreshState:
		log.Printf("[Console] %s: %s/%s", event.Type, payload.Game, payload.League)
	case ProcessLiveness:
		log.Printf("[Console] %s: %s running=%t", event.Type, payload.ProcessName, payload.IsRunning)
	default:
		log.Printf("[Console] %s", event.Type)
	}
	return nil
}
