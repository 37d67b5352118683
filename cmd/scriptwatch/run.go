package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/scriptwatch/internal/config"
	"github.com/loykin/scriptwatch/internal/history"
	"github.com/loykin/scriptwatch/internal/history/factory"
	"github.com/loykin/scriptwatch/internal/logger"
	"github.com/loykin/scriptwatch/internal/metrics"
	"github.com/loykin/scriptwatch/internal/monitor"
	"github.com/loykin/scriptwatch/internal/notify"
	"github.com/loykin/scriptwatch/internal/probe"
	"github.com/loykin/scriptwatch/internal/resolver"
	"github.com/loykin/scriptwatch/internal/scanner"
	"github.com/loykin/scriptwatch/internal/server"
	"github.com/loykin/scriptwatch/internal/tracker"
)

// runMonitor wires all components from the config and runs the loop until an
// external stop signal arrives.
func runMonitor(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if closer := logger.Setup(cfg.Log); closer != nil {
		defer func() { _ = closer.Close() }()
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	res := resolver.New()
	res.RootMarker = cfg.RootMarker
	res.ScanTimeout = cfg.ScanTimeout

	trk := tracker.New()
	prb := probe.New()

	var sinks []history.Sink
	var alerter monitor.Alerter
	if cfg.Webhook.URL != "" {
		wh := notify.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Username)
		sinks = append(sinks, wh)
		alerter = wh
	} else {
		slog.Warn("No webhook configured, notifications disabled")
	}
	if cfg.History.DSN != "" {
		store, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return fmt.Errorf("open event store: %w", err)
		}
		sinks = append(sinks, store)
		defer closeSink(store)
	} else {
		slog.Warn("No history DSN configured, persistence disabled")
	}

	dispatcher := history.NewDispatcher(sinks, cfg.History.QueueSize, cfg.History.SendTimeout)
	defer dispatcher.Close()

	if cfg.Server.Listen != "" {
		srv := server.NewServer(cfg.Server.Listen, cfg.Server.BasePath, trk, prb)
		slog.Info("Status endpoint listening", "addr", cfg.Server.Listen)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := monitor.New(monitor.Options{
		Scanner:  scanner.New(cfg.Runtime, res),
		Tracker:  trk,
		Probe:    prb,
		Queue:    dispatcher,
		Alerter:  alerter,
		Interval: cfg.Interval,
		Cooldown: cfg.Cooldown,
	})
	return m.Run(ctx)
}

func closeSink(s history.Sink) {
	if c, ok := s.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			slog.Warn("Closing event store failed", "error", err)
		}
	}
}
