package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/randysalars/dreamweaving"
)

func init() {
	recommendCmd.Flags().StringP("outcome", "o", "", "Desired outcome for the listener")
	recommendCmd.Flags().StringP("category", "c", "", "Restrict to one lesson category")
	recommendCmd.Flags().IntP("limit", "n", 0, "Maximum lessons to return")

	queriesCmd.Flags().StringP("outcome", "o", "", "Desired outcome for the listener")
	queriesCmd.Flags().StringP("type", "t", "", "Restrict to one content type")
	queriesCmd.Flags().IntP("limit", "n", 5, "Maximum suggestions to return")
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <topic>",
	Short: "Recommend the most effective lessons for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		outcome, _ := cmd.Flags().GetString("outcome")
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		rec, err := eng.Recommend(cmd.Context(), dreamweaving.RecommendRequest{
			Topic:          args[0],
			DesiredOutcome: outcome,
			Category:       category,
			Limit:          limit,
		})
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show effectiveness statistics for all tracked lessons",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		records, err := eng.Store().AllEffectiveness(cmd.Context())
		if err != nil {
			return err
		}
		baseline, err := eng.Store().Baseline(cmd.Context())
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(records))
		for id := range records {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		ordered := make([]any, 0, len(ids))
		for _, id := range ids {
			ordered = append(ordered, records[id])
		}
		return printJSON(map[string]any{
			"baseline": baseline,
			"lessons":  ordered,
		})
	},
}

var queriesCmd = &cobra.Command{
	Use:   "queries <topic>",
	Short: "Suggest proven knowledge-base queries for a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		outcome, _ := cmd.Flags().GetString("outcome")
		contentType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		suggestions, err := eng.Queries().SuggestQueries(cmd.Context(), args[0], outcome, contentType, limit)
		if err != nil {
			return err
		}
		return printJSON(suggestions)
	},
}
