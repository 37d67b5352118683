package history

import (
	"context"
	"strconv"
	"time"

	"github.com/loykin/scriptwatch/internal/probe"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// Event is one script lifecycle transition, enriched with the host address
// and a resource snapshot, ready for delivery to external systems.
type Event struct {
	Type       EventType      `json:"type"`
	PID        int32          `json:"pid"`
	ScriptPath string         `json:"script_path"`
	LocalIP    string         `json:"local_ip"`
	OccurredAt time.Time      `json:"occurred_at"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Resources  probe.Snapshot `json:"resources"`
}

// Key correlates the stop event of a script run with its start event. PIDs
// are reused by the OS, so the key also carries the start timestamp.
func (e Event) Key() string {
	return strconv.FormatInt(int64(e.PID), 10) + "-" + strconv.FormatInt(e.StartedAt.UnixNano(), 10)
}

// Sink is a destination for lifecycle events (notification channels and
// persistent stores). Implementations must be safe for concurrent use.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	Send(ctx context.Context, e Event) error
}
