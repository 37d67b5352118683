// Package scriptwatch watches a host for script-interpreter processes,
// resolves each to the script it runs, and reports start/stop transitions
// with resource metrics to notification and persistence sinks.
package scriptwatch

import (
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/scriptwatch/internal/config"
	"github.com/loykin/scriptwatch/internal/history"
	"github.com/loykin/scriptwatch/internal/history/factory"
	"github.com/loykin/scriptwatch/internal/logger"
	"github.com/loykin/scriptwatch/internal/metrics"
	"github.com/loykin/scriptwatch/internal/monitor"
	"github.com/loykin/scriptwatch/internal/notify"
	"github.com/loykin/scriptwatch/internal/probe"
	"github.com/loykin/scriptwatch/internal/resolver"
	"github.com/loykin/scriptwatch/internal/scanner"
	iapi "github.com/loykin/scriptwatch/internal/server"
	"github.com/loykin/scriptwatch/internal/tracker"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Event = history.Event

type EventType = history.EventType

const (
	EventStart = history.EventStart
	EventStop  = history.EventStop
)

type Sink = history.Sink

type Observation = tracker.Observation

type TrackedScript = tracker.TrackedScript

type Snapshot = probe.Snapshot

type MonitorOptions = monitor.Options

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// SetupLogger installs the default slog logger from c. The returned
// closer is non-nil when file logging is enabled.
func SetupLogger(c logger.Config) io.Closer { return logger.Setup(c) }

// NewResolver returns a resolver with crawler-project defaults
// (python interpreter, scrapy.cfg root marker).
func NewResolver() *resolver.Resolver { return resolver.New() }

// NewScanner builds a process scanner matching runtime (interpreter name)
// and resolving command lines through res.
func NewScanner(runtime string, res *resolver.Resolver) *scanner.Scanner {
	return scanner.New(runtime, res)
}

func NewTracker() *tracker.Tracker { return tracker.New() }

func NewProbe() *probe.Probe { return probe.New() }

// NewWebhookSink builds a webhook notifier; it satisfies both Sink and
// monitor.Alerter.
func NewWebhookSink(url, username string) *notify.Webhook {
	return notify.NewWebhook(url, username)
}

// NewStoreSink opens a persistent event store from a DSN
// (sqlite path, postgres:// or clickhouse:// URL).
func NewStoreSink(dsn string) (Sink, error) { return factory.NewSinkFromDSN(dsn) }

// NewDispatcher starts the async delivery queue in front of sinks.
func NewDispatcher(sinks []Sink, queueSize int, sendTimeout time.Duration) *history.Dispatcher {
	return history.NewDispatcher(sinks, queueSize, sendTimeout)
}

func NewMonitor(opts MonitorOptions) *monitor.Monitor { return monitor.New(opts) }

// NewHTTPServer starts an HTTP server exposing the read-only status API
// for the given tracker and probe.
func NewHTTPServer(addr, basePath string, trk *tracker.Tracker, prb *probe.Probe) *http.Server {
	return iapi.NewServer(addr, basePath, trk, prb)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It returns any immediate listen error; otherwise it
// runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
