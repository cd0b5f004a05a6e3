package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randysalars/dreamweaving"
)

var rootCmd = &cobra.Command{
	Use:           "dreamweave",
	Short:         "Lesson effectiveness feedback engine",
	Long:          "dreamweave tracks how well generation lessons perform and feeds the best ones back into future runs.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(
		lessonsCmd,
		recommendCmd,
		statsCmd,
		improveCmd,
		syncCmd,
		queriesCmd,
		mcpCmd,
	)
}

// newEngine builds an Engine with the process logger. Callers must Close it.
func newEngine() (*dreamweaving.Engine, error) {
	return dreamweaving.New(
		dreamweaving.WithLogger(slog.Default()),
		dreamweaving.WithVersion(version),
	)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
