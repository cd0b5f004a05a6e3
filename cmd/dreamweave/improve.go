package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/randysalars/dreamweaving"
)

func init() {
	improveCmd.Flags().StringP("scope", "s", "all", "Cycle scope label recorded in history")
	improveCmd.Flags().BoolP("report", "r", false, "Print the full cycle history instead of running a cycle")
}

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Run an improvement cycle over recent outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		if report, _ := cmd.Flags().GetBool("report"); report {
			history, err := eng.Store().CycleHistory(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(history)
		}

		scope, _ := cmd.Flags().GetString("scope")
		record, err := eng.RunImprovementCycle(cmd.Context(), scope)
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch delayed engagement metrics for ready outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		report, err := eng.SyncDelayedMetrics(cmd.Context())
		if err != nil {
			if errors.Is(err, dreamweaving.ErrSyncDisabled) {
				cmd.PrintErrln("delayed metrics sync is disabled: set DREAMWEAVE_METRICS_BASE_URL")
				return err
			}
			return err
		}
		return printJSON(report)
	},
}
