package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/scriptwatch/internal/metrics"
)

const (
	DefaultQueueSize   = 64
	DefaultSendTimeout = 5 * time.Second
)

// Dispatcher delivers events to a set of sinks from a background worker so a
// slow notification or store call never delays the monitor loop. The queue
// is bounded: when it is full, Enqueue drops the event with a log record and
// a metrics increment instead of blocking. Each sink call is bounded by a
// per-send timeout. Delivery is at-least-once attempted, never retried.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	timeout time.Duration
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewDispatcher starts the background worker. queueSize and timeout fall
// back to the package defaults when non-positive.
func NewDispatcher(sinks []Sink, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, queueSize),
		timeout: timeout,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue hands an event to the worker. It never blocks; a full queue drops
// the event and reports it.
func (d *Dispatcher) Enqueue(e Event) bool {
	select {
	case d.queue <- e:
		return true
	default:
		slog.Error("Dispatch queue full, dropping event",
			"type", e.Type, "pid", e.PID, "path", e.ScriptPath)
		metrics.IncDispatchDropped()
		return false
	}
}

// Close drains queued events, then stops the worker. Safe to call more than
// once.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		<-d.done
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		case <-d.stop:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case e := <-d.queue:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(e Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := sink.Send(ctx, e); err != nil {
			slog.Error("Sink delivery failed",
				"sink", sink.Name(), "type", e.Type, "pid", e.PID, "error", err)
			metrics.IncDispatchFailure(sink.Name())
		}
		cancel()
	}
}
