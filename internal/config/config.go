package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/scriptwatch/internal/logger"
)

// Config is the top-level TOML structure.
//
// Example:
//
//	interval = "4s"
//	cooldown = "60s"
//	runtime = "python"
//
//	[webhook]
//	url = "https://discord.com/api/webhooks/..."
//	username = "scriptwatch"
//
//	[history]
//	dsn = "sqlite:///var/lib/scriptwatch/events.db"
//
//	[server]
//	listen = "127.0.0.1:9180"
//
//	[log]
//	file = "/var/log/scriptwatch/scriptwatch.log"
type Config struct {
	// Interval is the polling tick period.
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
	// Cooldown is the backoff sleep after a critical loop error.
	Cooldown time.Duration `toml:"cooldown" mapstructure:"cooldown"`
	// Runtime is the case-insensitive substring matching monitored
	// interpreter process names.
	Runtime string `toml:"runtime" mapstructure:"runtime"`
	// RootMarker identifies a crawler project root directory.
	RootMarker string `toml:"root_marker" mapstructure:"root_marker"`
	// ScanTimeout bounds one spider source-tree scan.
	ScanTimeout time.Duration `toml:"scan_timeout" mapstructure:"scan_timeout"`

	Webhook WebhookConfig `toml:"webhook" mapstructure:"webhook"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Log     logger.Config `toml:"log" mapstructure:"log"`
}

// WebhookConfig configures the notification channel. An empty URL disables
// notifications.
type WebhookConfig struct {
	URL      string `toml:"url" mapstructure:"url"`
	Username string `toml:"username" mapstructure:"username"`
}

// HistoryConfig configures event persistence. An empty DSN disables it.
type HistoryConfig struct {
	DSN         string        `toml:"dsn" mapstructure:"dsn"`
	QueueSize   int           `toml:"queue_size" mapstructure:"queue_size"`
	SendTimeout time.Duration `toml:"send_timeout" mapstructure:"send_timeout"`
}

// ServerConfig configures the optional read-only status endpoint. An empty
// Listen address disables it.
type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Default values applied by Load.
const (
	DefaultInterval    = 4 * time.Second
	DefaultCooldown    = 60 * time.Second
	DefaultRuntime     = "python"
	DefaultRootMarker  = "scrapy.cfg"
	DefaultScanTimeout = 10 * time.Second
)

// Load reads a TOML config file. An empty path yields all defaults, which is
// a working configuration: the monitor runs and logs events, with webhook,
// persistence and the status server disabled.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Runtime == "" {
		c.Runtime = DefaultRuntime
	}
	if c.RootMarker == "" {
		c.RootMarker = DefaultRootMarker
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = DefaultScanTimeout
	}
}

func (c *Config) validate() error {
	if c.Interval < 100*time.Millisecond {
		return fmt.Errorf("interval %v too small", c.Interval)
	}
	if c.History.QueueSize < 0 {
		return fmt.Errorf("history.queue_size must not be negative")
	}
	return nil
}
