package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	monitorTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptwatch",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of completed polling iterations.",
		},
	)
	scanErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptwatch",
			Subsystem: "monitor",
			Name:      "scan_errors_total",
			Help:      "Number of process scans that failed as a whole.",
		},
	)
	criticalErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptwatch",
			Subsystem: "monitor",
			Name:      "critical_errors_total",
			Help:      "Number of unexpected errors that triggered the backoff state.",
		},
	)
	scriptsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scriptwatch",
			Subsystem: "monitor",
			Name:      "scripts_running",
			Help:      "Currently tracked script processes.",
		},
	)
	scriptEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptwatch",
			Subsystem: "monitor",
			Name:      "script_events_total",
			Help:      "Lifecycle events produced by the state diff.",
		}, []string{"type"},
	)
	dispatchDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scriptwatch",
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Events dropped because the dispatch queue was full.",
		},
	)
	dispatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scriptwatch",
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Failed sink deliveries by sink name.",
		}, []string{"sink"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		monitorTicks, scanErrors, criticalErrors, scriptsRunning,
		scriptEvents, dispatchDropped, dispatchFailures,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller is responsible for wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

func IncTick()                    { monitorTicks.Inc() }
func IncScanError()               { scanErrors.Inc() }
func IncCriticalError()           { criticalErrors.Inc() }
func SetScriptsRunning(n int)     { scriptsRunning.Set(float64(n)) }
func IncScriptEvent(typ string)   { scriptEvents.WithLabelValues(typ).Inc() }
func IncDispatchDropped()         { dispatchDropped.Inc() }
func IncDispatchFailure(s string) { dispatchFailures.WithLabelValues(s).Inc() }
