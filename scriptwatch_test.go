package scriptwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runtime != "python" || cfg.Interval != 4*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := "interval = \"1s\"\nruntime = \"node\"\n\n[webhook]\nurl = \"https://example.com/hook\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runtime != "node" || cfg.Interval != time.Second || cfg.Webhook.URL != "https://example.com/hook" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestRegisterMetricsFacade(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestMonitorFacadeRoundTrip(t *testing.T) {
	trk := NewTracker()
	dispatcher := NewDispatcher(nil, 1, time.Second)
	defer dispatcher.Close()

	m := NewMonitor(MonitorOptions{
		Scanner:  stubScanner{},
		Tracker:  trk,
		Probe:    NewProbe(),
		Queue:    dispatcher,
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

type stubScanner struct{}

func (stubScanner) Scan(context.Context) ([]Observation, error) { return nil, nil }
