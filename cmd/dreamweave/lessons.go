package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randysalars/dreamweaving/internal/model"
)

func init() {
	lessonsListCmd.Flags().BoolP("all", "a", false, "Include archived lessons")

	lessonsAddCmd.Flags().StringP("category", "c", "", "Lesson category (e.g. pacing, language, structure)")
	lessonsAddCmd.Flags().StringP("finding", "f", "", "What was learned")
	lessonsAddCmd.Flags().StringP("action", "x", "", "What to do about it")
	_ = lessonsAddCmd.MarkFlagRequired("category")
	_ = lessonsAddCmd.MarkFlagRequired("finding")

	lessonsCmd.AddCommand(
		lessonsListCmd,
		lessonsAddCmd,
		lessonsShowCmd,
		lessonsArchiveCmd,
		lessonsConfidenceCmd,
	)
}

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Manage the lesson registry",
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		includeArchived, _ := cmd.Flags().GetBool("all")
		all, err := eng.Lessons().List(cmd.Context(), includeArchived)
		if err != nil {
			return err
		}
		return printJSON(all)
	},
}

var lessonsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a lesson",
	Example: `
# Record a pacing lesson
dreamweave lessons add -c pacing -f "slower inductions retain better" -x "keep induction pace under 110 wpm"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		category, _ := cmd.Flags().GetString("category")
		finding, _ := cmd.Flags().GetString("finding")
		action, _ := cmd.Flags().GetString("action")

		lesson, err := eng.Lessons().Add(cmd.Context(), model.Lesson{
			Category: category,
			Finding:  finding,
			Action:   action,
		})
		if err != nil {
			return err
		}
		return printJSON(lesson)
	},
}

var lessonsShowCmd = &cobra.Command{
	Use:   "show <lesson-id>",
	Short: "Show a lesson with its effectiveness record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		lesson, err := eng.Lessons().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		score, err := eng.Scorer().Calculate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		suggestions, err := eng.Scorer().SuggestImprovements(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"lesson":      lesson,
			"score":       score,
			"suggestions": suggestions,
		})
	},
}

var lessonsArchiveCmd = &cobra.Command{
	Use:   "archive <lesson-id>",
	Short: "Archive a lesson so it stops being recommended",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		if err := eng.Lessons().Archive(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("archived", args[0])
		return nil
	},
}

var lessonsConfidenceCmd = &cobra.Command{
	Use:   "confidence <lesson-id> <high|medium|low>",
	Short: "Override a lesson's confidence tier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		if err := eng.Lessons().SetConfidence(cmd.Context(), args[0], model.ConfidenceTier(args[1])); err != nil {
			return err
		}
		fmt.Println("confidence set", args[0], args[1])
		return nil
	},
}
