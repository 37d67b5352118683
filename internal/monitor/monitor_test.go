package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/scriptwatch/internal/history"
	"github.com/loykin/scriptwatch/internal/probe"
	"github.com/loykin/scriptwatch/internal/tracker"
)

// scriptedScanner returns one prepared result per tick, repeating the last
// one when the script runs out.
type scriptedScanner struct {
	mu      sync.Mutex
	ticks   []func() ([]tracker.Observation, error)
	current int
}

func (s *scriptedScanner) Scan(context.Context) ([]tracker.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.current
	if i >= len(s.ticks) {
		i = len(s.ticks) - 1
	} else {
		s.current++
	}
	return s.ticks[i]()
}

type captureQueue struct {
	mu     sync.Mutex
	events []history.Event
}

func (q *captureQueue) Enqueue(e history.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
	return true
}

func (q *captureQueue) snapshot() []history.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]history.Event(nil), q.events...)
}

type captureAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (a *captureAlerter) Critical(_ context.Context, _, msg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	return nil
}

func (a *captureAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

type nopProbe struct{}

func (nopProbe) Collect(context.Context) probe.Snapshot { return probe.Snapshot{} }

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMonitorEmitsStartAndStop(t *testing.T) {
	created := time.Unix(1700000000, 0)
	obs := []tracker.Observation{{PID: 100, Path: "/jobs/crawler.py", CreateTime: created}}
	sc := &scriptedScanner{ticks: []func() ([]tracker.Observation, error){
		func() ([]tracker.Observation, error) { return nil, nil },
		func() ([]tracker.Observation, error) { return obs, nil },
		func() ([]tracker.Observation, error) { return nil, nil },
	}}
	q := &captureQueue{}
	m := New(Options{
		Scanner:  sc,
		Tracker:  tracker.New(),
		Probe:    nopProbe{},
		Queue:    q,
		Interval: 5 * time.Millisecond,
		Cooldown: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, func() bool { return len(q.snapshot()) >= 2 }, "start and stop events")
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	events := q.snapshot()
	if events[0].Type != history.EventStart || events[0].PID != 100 {
		t.Fatalf("first event: %+v", events[0])
	}
	if events[1].Type != history.EventStop || events[1].Duration < 0 {
		t.Fatalf("second event: %+v", events[1])
	}
}

func TestMonitorScanErrorSkipsTick(t *testing.T) {
	var calls atomic.Int32
	sc := &scriptedScanner{ticks: []func() ([]tracker.Observation, error){
		func() ([]tracker.Observation, error) {
			calls.Add(1)
			return nil, errors.New("procfs unavailable")
		},
	}}
	q := &captureQueue{}
	alert := &captureAlerter{}
	m := New(Options{
		Scanner:  sc,
		Tracker:  tracker.New(),
		Probe:    nopProbe{},
		Queue:    q,
		Alerter:  alert,
		Interval: 5 * time.Millisecond,
		Cooldown: time.Hour, // a critical error would wedge the test
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, func() bool { return calls.Load() >= 3 }, "repeated ticks after scan errors")
	cancel()
	<-done

	if len(q.snapshot()) != 0 {
		t.Fatalf("scan failure produced events: %v", q.snapshot())
	}
	if alert.count() != 0 {
		t.Fatalf("scan failure escalated to critical: %d alerts", alert.count())
	}
}

func TestMonitorCriticalBackoffAndRecovery(t *testing.T) {
	var tick atomic.Int32
	sc := &scriptedScanner{ticks: []func() ([]tracker.Observation, error){
		func() ([]tracker.Observation, error) { tick.Add(1); panic("unexpected") },
		func() ([]tracker.Observation, error) { tick.Add(1); return nil, nil },
	}}
	alert := &captureAlerter{}
	m := New(Options{
		Scanner:  sc,
		Tracker:  tracker.New(),
		Probe:    nopProbe{},
		Queue:    &captureQueue{},
		Alerter:  alert,
		Interval: 5 * time.Millisecond,
		Cooldown: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// The loop must survive the panic, alert exactly once for it, back off,
	// and keep ticking.
	waitFor(t, func() bool { return tick.Load() >= 3 }, "ticks after recovery")
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned error after recovery: %v", err)
	}
	if alert.count() != 1 {
		t.Fatalf("expected exactly one critical alert, got %d", alert.count())
	}
}

func TestMonitorPromptShutdown(t *testing.T) {
	sc := &scriptedScanner{ticks: []func() ([]tracker.Observation, error){
		func() ([]tracker.Observation, error) { return nil, nil },
	}}
	m := New(Options{
		Scanner:  sc,
		Tracker:  tracker.New(),
		Probe:    nopProbe{},
		Queue:    &captureQueue{},
		Interval: time.Hour, // shutdown must not wait out the interval
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop promptly")
	}
}
