package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voice2fire/pulsewatch/internal/api"
	"github.com/voice2fire/pulsewatch/internal/escalation"
	"github.com/voice2fire/pulsewatch/internal/metrics"
	"github.com/voice2fire/pulsewatch/internal/monitor"
	"github.com/voice2fire/pulsewatch/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run monitoring and escalation continuously",
	Long: `Runs the monitoring cycle and escalation sweep on their configured
intervals, with the ops API and metrics endpoint when enabled. Thresholds
from monitor.thresholds_file are hot-reloaded on change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	logs, closeLogs, err := openDeliveryLogSource(cfg, store)
	if err != nil {
		return err
	}
	defer closeLogs()

	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	mon, err := buildMonitor(cfg, store, logs, dispatcher)
	if err != nil {
		return err
	}
	scheduler := escalation.NewScheduler(store, dispatcher)

	// Setup signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	// Thresholds hot reload
	if cfg.Monitor.ThresholdsFile != "" {
		watcher, err := monitor.NewThresholdsWatcher(cfg.Monitor.ThresholdsFile, mon)
		if err != nil {
			return fmt.Errorf("watch thresholds: %w", err)
		}
		defer watcher.Close()
		watcher.Start(ctx)
		log.Printf("watching thresholds file %s", cfg.Monitor.ThresholdsFile)
	}

	// Ops API
	if cfg.API.Enabled {
		secret := os.Getenv("PULSEWATCH_JWT_SECRET")
		if secret == "" {
			return fmt.Errorf("PULSEWATCH_JWT_SECRET environment variable is required when the API is enabled")
		}
		apiServer, err := api.New(&api.Config{
			Address:        cfg.API.Address,
			JWTSecret:      []byte(secret),
			AccessTokenTTL: cfg.API.AccessTokenTTL,
			Verbose:        cfg.Verbose,
		}, store)
		if err != nil {
			return fmt.Errorf("create api server: %w", err)
		}
		g.Go(func() error {
			return apiServer.Run(ctx)
		})
	}

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			return metricsServer.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	// Monitoring loop
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Serve.MonitorInterval)
		defer ticker.Stop()
		for {
			if _, err := mon.Run(ctx); err != nil {
				log.Printf("monitor cycle failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	// Escalation loop
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Serve.EscalationInterval)
		defer ticker.Stop()
		for {
			if _, err := scheduler.Run(ctx); err != nil {
				log.Printf("escalation sweep failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	log.Printf("starting pulsewatch %s", config.Version)
	log.Printf("monitor every %s, escalation every %s", cfg.Serve.MonitorInterval, cfg.Serve.EscalationInterval)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	log.Printf("stopped")
	return nil
}
