package tracker

import (
	"sort"
	"sync"
	"time"
)

// Observation is one monitored process seen during a scan tick.
type Observation struct {
	PID        int32
	Path       string
	CreateTime time.Time
}

// TrackedScript is the open lifecycle entry for one pid. Immutable once
// inserted; removed when the pid disappears from a scan.
type TrackedScript struct {
	PID        int32
	Path       string
	StartedAt  time.Time
	CreateTime time.Time
}

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// Event is a lifecycle transition produced by Diff. Duration is set on stop
// events only.
type Event struct {
	Type       EventType
	PID        int32
	Path       string
	OccurredAt time.Time
	StartedAt  time.Time
	Duration   time.Duration
}

// Tracker owns the pid-to-script table and turns scan snapshots into
// start/stop events, exactly one per transition. Diff is called from the
// single loop goroutine; the mutex only lets Len and Running serve
// concurrent read-only status queries.
type Tracker struct {
	mu      sync.RWMutex
	scripts map[int32]TrackedScript
}

func New() *Tracker {
	return &Tracker{scripts: make(map[int32]TrackedScript)}
}

// Diff folds a new snapshot into the table. New pids produce start events,
// vanished pids produce stop events with the elapsed wall-clock duration.
// A pid observed with a different process create time was reused by the OS
// between ticks: the stale entry is closed and a fresh one opened in the
// same tick. Starts are computed before stops; a pid never yields both for
// a single observation interval.
func (t *Tracker) Diff(now time.Time, snapshot []Observation) (started, stopped []Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := make(map[int32]struct{}, len(snapshot))
	for _, obs := range snapshot {
		current[obs.PID] = struct{}{}
		prev, seen := t.scripts[obs.PID]
		if seen && sameProcess(prev, obs) {
			continue
		}
		if seen {
			// pid reuse: close the stale entry before opening the new one.
			stopped = append(stopped, t.closeEvent(prev, now))
		}
		entry := TrackedScript{PID: obs.PID, Path: obs.Path, StartedAt: now, CreateTime: obs.CreateTime}
		t.scripts[obs.PID] = entry
		started = append(started, Event{
			Type:       EventStart,
			PID:        obs.PID,
			Path:       obs.Path,
			OccurredAt: now,
			StartedAt:  now,
		})
	}
	for pid, entry := range t.scripts {
		if _, ok := current[pid]; ok {
			continue
		}
		stopped = append(stopped, t.closeEvent(entry, now))
		delete(t.scripts, pid)
	}
	// Map iteration order is random; keep stop output deterministic.
	sort.Slice(stopped, func(i, j int) bool { return stopped[i].PID < stopped[j].PID })
	return started, stopped
}

func (t *Tracker) closeEvent(entry TrackedScript, now time.Time) Event {
	return Event{
		Type:       EventStop,
		PID:        entry.PID,
		Path:       entry.Path,
		OccurredAt: now,
		StartedAt:  entry.StartedAt,
		Duration:   now.Sub(entry.StartedAt),
	}
}

// sameProcess reports whether an observation matches the tracked entry for
// its pid. Create times equal to the zero value (unavailable on the host)
// compare as matching so a probe hiccup does not fabricate a restart.
func sameProcess(entry TrackedScript, obs Observation) bool {
	if entry.CreateTime.IsZero() || obs.CreateTime.IsZero() {
		return true
	}
	return entry.CreateTime.Equal(obs.CreateTime)
}

// Len returns the number of open entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.scripts)
}

// Running returns a copy of the open entries sorted by pid.
func (t *Tracker) Running() []TrackedScript {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TrackedScript, 0, len(t.scripts))
	for _, e := range t.scripts {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
