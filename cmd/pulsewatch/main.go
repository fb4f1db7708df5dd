package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/monitor"
	"github.com/voice2fire/pulsewatch/internal/notifier"
	"github.com/voice2fire/pulsewatch/internal/storage"
	"github.com/voice2fire/pulsewatch/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pulsewatch",
	Short: "PulseWatch - delivery monitoring and alert escalation",
	Long: `PulseWatch watches Voice2Fire message delivery logs for anomalies,
raises alerts, and escalates unacknowledged alerts through
severity-specific responder chains.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pulsewatch %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(escalateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config file if given, or defaults.
func loadConfig() (*Config, error) {
	var cfg *Config
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}
	cfg.Verbose = verbose
	return cfg, nil
}

// openStorage opens and migrates the SQLite alert store.
func openStorage(cfg *Config) (*storage.SQLiteStorage, error) {
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)
	return store, nil
}

// openDeliveryLogSource returns the delivery log source the sampler reads:
// ClickHouse when enabled, otherwise the store's local table. The returned
// close function is a no-op for the local table.
func openDeliveryLogSource(cfg *Config, store storage.Storage) (storage.DeliveryLogRepository, func() error, error) {
	if !cfg.ClickHouse.Enabled {
		return store.DeliveryLogs(), func() error { return nil }, nil
	}

	ch := storage.NewClickHouseDeliveryLogs(&storage.ClickHouseConfig{
		Addresses:     cfg.ClickHouse.Addresses,
		Database:      cfg.ClickHouse.Database,
		Username:      cfg.ClickHouse.Username,
		Password:      cfg.ClickHouse.Password,
		RetentionDays: cfg.ClickHouse.RetentionDays,
	})
	if err := ch.Open(); err != nil {
		return nil, nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := ch.Migrate(); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	log.Printf("delivery logs sourced from clickhouse %v", cfg.ClickHouse.Addresses)
	return ch, ch.Close, nil
}

// buildDispatcher assembles the notification dispatcher from config.
func buildDispatcher(cfg *Config) (*notifier.Dispatcher, error) {
	d := notifier.NewDispatcher(notifier.DispatcherOptions{
		Timeout: cfg.Notify.Timeout,
		RateLimit: notifier.RateLimitConfig{
			MaxPerWindow: cfg.Notify.RateLimit.MaxPerWindow,
			Window:       cfg.Notify.RateLimit.Window,
			Enabled:      !cfg.Notify.RateLimit.Disabled,
		},
	})

	switch cfg.Notify.Dispatcher {
	case "webhook":
		wh, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{
			URL:            cfg.Notify.Webhook.URL,
			Token:          os.Getenv("PULSEWATCH_WEBHOOK_TOKEN"),
			RequestTimeout: cfg.Notify.Webhook.RequestTimeout,
			MaxPerSecond:   cfg.Notify.Webhook.MaxPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook notifier: %w", err)
		}
		d.Register(wh)
	default:
		d.Register(notifier.NewLogNotifier())
	}

	return d, nil
}

// buildMonitor assembles the monitor from config, including file-based
// thresholds when configured.
func buildMonitor(cfg *Config, store storage.Storage, logs storage.DeliveryLogRepository, dispatcher *notifier.Dispatcher) (*monitor.Monitor, error) {
	thresholds := cfg.Monitor.Thresholds
	if cfg.Monitor.ThresholdsFile != "" {
		var err error
		thresholds, err = monitor.LoadThresholds(cfg.Monitor.ThresholdsFile)
		if err != nil {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
	}

	return monitor.New(store, logs, dispatcher, monitor.Config{
		Channel:    models.Channel(cfg.Monitor.Channel),
		Window:     cfg.Monitor.Window,
		Cooldown:   cfg.Monitor.Cooldown,
		Thresholds: thresholds,
	}), nil
}
