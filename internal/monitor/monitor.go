package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/scriptwatch/internal/history"
	"github.com/loykin/scriptwatch/internal/metrics"
	"github.com/loykin/scriptwatch/internal/netutil"
	"github.com/loykin/scriptwatch/internal/probe"
	"github.com/loykin/scriptwatch/internal/tracker"
)

// Scanner produces the snapshot of monitored processes for one tick.
type Scanner interface {
	Scan(ctx context.Context) ([]tracker.Observation, error)
}

// Prober samples host resources; it must not fail.
type Prober interface {
	Collect(ctx context.Context) probe.Snapshot
}

// Queue accepts events for asynchronous delivery.
type Queue interface {
	Enqueue(e history.Event) bool
}

// Alerter receives critical-error notifications outside the event flow.
type Alerter interface {
	Critical(ctx context.Context, localIP, msg string) error
}

// Options wires a Monitor. Scanner, Tracker and Queue are required; Alerter
// may be nil when no notification channel is configured.
type Options struct {
	Scanner  Scanner
	Tracker  *tracker.Tracker
	Probe    Prober
	Queue    Queue
	Alerter  Alerter
	Interval time.Duration
	Cooldown time.Duration
}

// Monitor drives the polling loop: scan, sample, diff, dispatch, sleep.
// It has two states. In the normal running state every iteration performs
// one tick and sleeps Interval. When a tick fails in a way no sub-component
// anticipated, the loop emits one critical alert and backs off for Cooldown
// before resuming. Only context cancellation terminates the loop.
type Monitor struct {
	opts Options
}

func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 4 * time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 60 * time.Second
	}
	return &Monitor{opts: opts}
}

// Run executes the loop until ctx is canceled. It always returns nil on
// cancellation; critical errors never escape.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("Starting script monitor",
		"interval", m.opts.Interval, "cooldown", m.opts.Cooldown)
	for {
		err := m.tick(ctx)
		if ctx.Err() != nil {
			slog.Info("Script monitor stopped")
			return nil
		}
		delay := m.opts.Interval
		if err != nil {
			m.reportCritical(ctx, err)
			delay = m.opts.Cooldown
		}
		if !sleepCtx(ctx, delay) {
			slog.Info("Script monitor stopped")
			return nil
		}
	}
}

// tick performs one iteration. Errors returned here are critical: everything
// a sub-component anticipates is already handled (and logged) below it.
func (m *Monitor) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	snapshot, scanErr := m.opts.Scanner.Scan(ctx)
	if scanErr != nil {
		// Whole-scan failure is anticipated (e.g. transient procfs issues):
		// skip this tick, state stays as-is so no spurious stops are emitted.
		slog.Error("Process scan failed, skipping tick", "error", scanErr)
		metrics.IncScanError()
		return nil
	}

	resources := m.opts.Probe.Collect(ctx)
	localIP := netutil.LocalIP(ctx)

	now := time.Now()
	started, stopped := m.opts.Tracker.Diff(now, snapshot)
	metrics.IncTick()
	metrics.SetScriptsRunning(m.opts.Tracker.Len())

	for _, ev := range started {
		slog.Info("Script started", "pid", ev.PID, "path", ev.Path)
		m.dispatch(ev, localIP, resources)
	}
	for _, ev := range stopped {
		slog.Info("Script stopped", "pid", ev.PID, "path", ev.Path, "duration", ev.Duration)
		m.dispatch(ev, localIP, resources)
	}
	return nil
}

func (m *Monitor) dispatch(ev tracker.Event, localIP string, resources probe.Snapshot) {
	metrics.IncScriptEvent(string(ev.Type))
	m.opts.Queue.Enqueue(history.Event{
		Type:       history.EventType(ev.Type),
		PID:        ev.PID,
		ScriptPath: ev.Path,
		LocalIP:    localIP,
		OccurredAt: ev.OccurredAt,
		StartedAt:  ev.StartedAt,
		Duration:   ev.Duration,
		Resources:  resources,
	})
}

func (m *Monitor) reportCritical(ctx context.Context, err error) {
	slog.Error("Critical monitoring error, backing off",
		"error", err, "cooldown", m.opts.Cooldown)
	metrics.IncCriticalError()
	if m.opts.Alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if aerr := m.opts.Alerter.Critical(alertCtx, netutil.LocalIP(alertCtx), err.Error()); aerr != nil {
		slog.Error("Critical alert delivery failed", "error", aerr)
	}
}

// sleepCtx waits d or until ctx is canceled; false means canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
