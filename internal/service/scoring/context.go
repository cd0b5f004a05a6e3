package scoring

import (
	"strings"

	"github.com/randysalars/dreamweaving/internal/model"
)

// ContextScorer computes the multiplier applied to a lesson's base score
// for a particular generation context. Implementations must return values
// in [0.8, 1.2].
type ContextScorer interface {
	Boost(eff model.LessonEffectiveness, contextKey string) float64
}

// OverlapScorer is the default ContextScorer. Exact matches against a
// recorded best context earn the full boost; otherwise a token-overlap
// match or the lesson's tracked score for the context scales it.
type OverlapScorer struct{}

// Boost returns the context multiplier for a normalized context key.
func (OverlapScorer) Boost(eff model.LessonEffectiveness, contextKey string) float64 {
	for _, best := range eff.BestContexts {
		if best == contextKey {
			return 1.20
		}
	}

	tokens := tokenSet(contextKey)
	if len(tokens) > 0 {
		for _, best := range eff.BestContexts {
			if overlapRatio(tokens, tokenSet(best)) > 0.5 {
				return 1.10
			}
		}
	}

	if cs, ok := eff.ContextScores[contextKey]; ok {
		boost := 1 + 0.2*((cs-50)/50)
		return clamp(boost, 0.8, 1.2)
	}
	return 1.0
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// overlapRatio is the fraction of tokens in a that also appear in b.
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	var hits int
	for tok := range a {
		if _, ok := b[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}
