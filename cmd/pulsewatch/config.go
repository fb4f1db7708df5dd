// Package main provides the PulseWatch CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/monitor"
)

// Config represents the pulsewatch configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Notify     NotifyConfig     `yaml:"notify"`
	API        APIConfig        `yaml:"api"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Serve      ServeConfig      `yaml:"serve"`
	Verbose    bool             `yaml:"-"` // set via CLI flag
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database path (default: data/pulsewatch.db)
}

// ClickHouseConfig contains optional ClickHouse delivery log source settings.
// When disabled the sampler reads the local delivery_logs table.
type ClickHouseConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Addresses     []string `yaml:"addresses"`
	Database      string   `yaml:"database"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	RetentionDays int      `yaml:"retention_days"`
}

// MonitorConfig contains sampling and classification settings.
type MonitorConfig struct {
	Channel        string             `yaml:"channel"`         // delivery channel to watch (default: sms)
	Window         time.Duration      `yaml:"window"`          // sampling window (default: 1h)
	Cooldown       time.Duration      `yaml:"cooldown"`        // duplicate suppression span (default: 30m)
	ThresholdsFile string             `yaml:"thresholds_file"` // optional thresholds YAML, hot-reloaded in serve mode
	Thresholds     monitor.Thresholds `yaml:"thresholds"`      // inline thresholds, used when no file is set
}

// NotifyConfig contains notification dispatch settings.
type NotifyConfig struct {
	Dispatcher string        `yaml:"dispatcher"` // "webhook" or "log" (default: log)
	Timeout    time.Duration `yaml:"timeout"`    // dispatch timeout (default: 15s)
	Webhook    WebhookConfig `yaml:"webhook"`
	RateLimit  RateConfig    `yaml:"rate_limit"`
}

// WebhookConfig contains admin-notification webhook settings. The bearer
// token comes from PULSEWATCH_WEBHOOK_TOKEN, never from the file.
type WebhookConfig struct {
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // default: 10s
	MaxPerSecond   float64       `yaml:"max_per_second"`  // default: 5
}

// RateConfig contains notification rate limit settings.
type RateConfig struct {
	Disabled     bool          `yaml:"disabled"`
	MaxPerWindow int           `yaml:"max_per_window"` // default: 30
	Window       time.Duration `yaml:"window"`         // default: 1m
}

// APIConfig contains ops API settings. The JWT secret comes from
// PULSEWATCH_JWT_SECRET, never from the file.
type APIConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address"`          // default: :8080
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"` // default: 15m
}

// MetricsConfig contains Prometheus metrics server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default: :9090
}

// ServeConfig contains long-running serve mode settings.
type ServeConfig struct {
	MonitorInterval    time.Duration `yaml:"monitor_interval"`    // default: 5m
	EscalationInterval time.Duration `yaml:"escalation_interval"` // default: 1m
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/pulsewatch.db"
	}
	if c.Monitor.Channel == "" {
		c.Monitor.Channel = string(models.ChannelSMS)
	}
	if c.Monitor.Window <= 0 {
		c.Monitor.Window = time.Hour
	}
	if c.Monitor.Cooldown <= 0 {
		c.Monitor.Cooldown = 30 * time.Minute
	}
	c.Monitor.Thresholds.FillDefaults()
	if c.Notify.Dispatcher == "" {
		c.Notify.Dispatcher = "log"
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 15 * time.Second
	}
	if c.Notify.Webhook.RequestTimeout <= 0 {
		c.Notify.Webhook.RequestTimeout = 10 * time.Second
	}
	if c.Notify.Webhook.MaxPerSecond <= 0 {
		c.Notify.Webhook.MaxPerSecond = 5
	}
	if c.Notify.RateLimit.MaxPerWindow <= 0 {
		c.Notify.RateLimit.MaxPerWindow = 30
	}
	if c.Notify.RateLimit.Window <= 0 {
		c.Notify.RateLimit.Window = time.Minute
	}
	if c.API.Address == "" {
		c.API.Address = ":8080"
	}
	if c.API.AccessTokenTTL <= 0 {
		c.API.AccessTokenTTL = 15 * time.Minute
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Serve.MonitorInterval <= 0 {
		c.Serve.MonitorInterval = 5 * time.Minute
	}
	if c.Serve.EscalationInterval <= 0 {
		c.Serve.EscalationInterval = time.Minute
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if !models.ValidChannel(c.Monitor.Channel) {
		return fmt.Errorf("monitor.channel: unknown channel %q", c.Monitor.Channel)
	}
	if c.Monitor.ThresholdsFile == "" {
		if err := c.Monitor.Thresholds.Validate(); err != nil {
			return fmt.Errorf("monitor.thresholds: %w", err)
		}
	}
	switch c.Notify.Dispatcher {
	case "log":
	case "webhook":
		if c.Notify.Webhook.URL == "" {
			return fmt.Errorf("notify.webhook.url is required when dispatcher is webhook")
		}
	default:
		return fmt.Errorf("notify.dispatcher: must be \"webhook\" or \"log\", got %q", c.Notify.Dispatcher)
	}
	if c.ClickHouse.Enabled && len(c.ClickHouse.Addresses) == 0 {
		return fmt.Errorf("clickhouse.addresses is required when clickhouse is enabled")
	}
	return nil
}
