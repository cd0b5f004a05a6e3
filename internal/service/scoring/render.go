package scoring

import (
	"fmt"
	"strings"
)

// RenderLessonBlock formats ranked lessons as a markdown block suitable for
// injection into a generation prompt. Returns "" when there is nothing
// worth injecting.
func RenderLessonBlock(ranked []RankedLesson) string {
	if len(ranked) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Proven lessons from past sessions\n\n")
	b.WriteString("Apply these where relevant; they are ordered by measured effectiveness.\n\n")
	for i, r := range ranked {
		fmt.Fprintf(&b, "%d. [%s] %s (score %.0f", i+1, r.Lesson.Category, r.Lesson.Finding, r.Score)
		if r.TimesApplied > 0 {
			fmt.Fprintf(&b, ", applied %dx", r.TimesApplied)
		}
		b.WriteString(")\n")
		if r.Lesson.Action != "" {
			fmt.Fprintf(&b, "   Action: %s\n", r.Lesson.Action)
		}
	}
	return b.String()
}
