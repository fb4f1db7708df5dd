package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/voice2fire/pulsewatch/internal/escalation"
)

var escalateCmd = &cobra.Command{
	Use:   "escalate",
	Short: "Run one escalation sweep",
	Long: `Scans unresolved alerts and escalates those that have sat
unacknowledged past their current level's time threshold. Intended for
cron-style invocation; use serve for a long-running process.`,
	RunE: runEscalate,
}

func runEscalate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	scheduler := escalation.NewScheduler(store, dispatcher)
	result, err := scheduler.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("escalation sweep: %w", err)
	}

	for _, sweepErr := range result.Errors {
		log.Printf("escalation: %v", sweepErr)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("escalation sweep finished with %d errors", len(result.Errors))
	}
	return nil
}
