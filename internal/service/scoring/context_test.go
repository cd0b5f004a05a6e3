package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randysalars/dreamweaving/internal/model"
)

func TestOverlapScorerBoost(t *testing.T) {
	eff := model.LessonEffectiveness{
		BestContexts: []string{"deep sleep restful night"},
		ContextScores: map[string]float64{
			"deep sleep restful night": 90,
			"mediocre context":         50,
			"poor fit":                 25,
		},
	}

	tests := []struct {
		name string
		key  string
		want float64
	}{
		{name: "exact best context", key: "deep sleep restful night", want: 1.20},
		{name: "majority token overlap", key: "deep sleep tonight", want: 1.10},
		{name: "known neutral context", key: "mediocre context", want: 1.0},
		{name: "known poor context", key: "poor fit", want: 0.9},
		{name: "unknown context", key: "public speaking", want: 1.0},
	}

	scorer := OverlapScorer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scorer.Boost(eff, tt.key), 1e-9)
		})
	}
}

func TestOverlapScorerBoostClamped(t *testing.T) {
	eff := model.LessonEffectiveness{
		ContextScores: map[string]float64{"terrible": 0, "perfect": 100},
	}
	scorer := OverlapScorer{}
	assert.InDelta(t, 0.8, scorer.Boost(eff, "terrible"), 1e-9)
	assert.InDelta(t, 1.2, scorer.Boost(eff, "perfect"), 1e-9)
}

func TestRenderLessonBlock(t *testing.T) {
	assert.Empty(t, RenderLessonBlock(nil))

	block := RenderLessonBlock([]RankedLesson{
		{
			Lesson:       model.Lesson{Category: "pacing", Finding: "slow inductions work", Action: "keep pace under 110 wpm"},
			Score:        82,
			TimesApplied: 12,
		},
	})
	assert.Contains(t, block, "[pacing] slow inductions work")
	assert.Contains(t, block, "score 82")
	assert.Contains(t, block, "applied 12x")
	assert.Contains(t, block, "keep pace under 110 wpm")
}
