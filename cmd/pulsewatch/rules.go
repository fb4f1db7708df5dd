package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage escalation rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalation rules",
	RunE:  runRulesList,
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset escalation rules to the built-in defaults",
	Long: `Deletes all escalation rules and reseeds the default chains for
each severity. Existing alerts keep their current escalation state.`,
	RunE: runRulesReset,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesResetCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rules, err := store.Rules().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tLEVEL\tAFTER\tROLE\tCHANNELS")
	for _, r := range rules {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%v\n",
			r.Severity, r.Level, r.TimeThreshold, r.TargetRole, r.ChannelStrings())
	}
	return w.Flush()
}

func runRulesReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Rules().ResetDefaults(cmd.Context()); err != nil {
		return fmt.Errorf("reset rules: %w", err)
	}

	rules, err := store.Rules().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	fmt.Printf("escalation rules reset to defaults (%d rules)\n", len(rules))
	return nil
}
