package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one monitoring cycle",
	Long: `Samples the delivery log window, classifies anomalies, persists new
alerts, and sends admin notifications. Intended for cron-style invocation;
use serve for a long-running process.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
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

	result, err := mon.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("monitor cycle: %w", err)
	}

	for _, cycleErr := range result.Errors {
		log.Printf("monitor: %v", cycleErr)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("monitor cycle finished with %d errors", len(result.Errors))
	}
	return nil
}
