package improve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/randysalars/dreamweaving/internal/model"
)

// manualMarker separates the generated summary from hand-written notes.
// Everything from the marker to end of file survives regeneration.
const manualMarker = "<!-- manual-notes -->"

// RegenerateSummary rewrites the best-practices markdown file from the
// current lesson registry, grouped by category with the highest-scoring
// lessons first. Manual notes below the marker are preserved.
func (o *Orchestrator) RegenerateSummary(ctx context.Context) error {
	all, err := o.registry.List(ctx, false)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}
	records, err := o.store.AllEffectiveness(ctx)
	if err != nil {
		return fmt.Errorf("load effectiveness: %w", err)
	}

	byCategory := map[string][]model.Lesson{}
	for _, l := range all {
		byCategory[l.Category] = append(byCategory[l.Category], l)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("# Best practices\n\n")
	fmt.Fprintf(&b, "Generated %s from %d active lessons. Do not edit above the marker.\n",
		o.store.Now().Format("2006-01-02"), len(all))

	for _, category := range categories {
		group := byCategory[category]
		sort.SliceStable(group, func(i, j int) bool {
			si, sj := records[group[i].ID].Score, records[group[j].ID].Score
			if si == sj {
				return group[i].ID < group[j].ID
			}
			return si > sj
		})

		fmt.Fprintf(&b, "\n## %s\n\n", category)
		for _, l := range group {
			eff, tracked := records[l.ID]
			fmt.Fprintf(&b, "- **%s** (%s", l.Finding, l.Confidence)
			if tracked && eff.TimesApplied > 0 {
				fmt.Fprintf(&b, ", score %.0f, applied %dx", eff.Score, eff.TimesApplied)
			}
			b.WriteString(")\n")
			if l.Action != "" {
				fmt.Fprintf(&b, "  - %s\n", l.Action)
			}
		}
	}
	b.WriteString("\n" + manualMarker + "\n")

	// Carry over any manual notes from the previous file.
	if prior, err := os.ReadFile(o.summaryPath); err == nil {
		if idx := strings.Index(string(prior), manualMarker); idx >= 0 {
			manual := strings.TrimPrefix(string(prior)[idx+len(manualMarker):], "\n")
			b.WriteString(manual)
		}
	}

	if err := os.MkdirAll(filepath.Dir(o.summaryPath), 0o750); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(o.summaryPath, []byte(b.String()), 0o640); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	o.logger.Info("improve: summary regenerated", "path", o.summaryPath, "lessons", len(all))
	return nil
}
