package discovery

import (
	"gtp/internal/config"
	"gtp/internal/domain"
)

// TraitMerger combines a test's intrinsic traits with the user's regex trait rules.
// "Before" rules provide defaults; "after" rules always win.
type TraitMerger struct {
	before []config.RegexTraitPair
	after  []config.RegexTraitPair
}

// NewTraitMerger creates a TraitMerger from ordered before and after rules
func NewTraitMerger(before, after []config.RegexTraitPair) *TraitMerger {
	return &TraitMerger{before: before, after: after}
}

// Merge returns the final traits of the test with displayName
func (tm *TraitMerger) Merge(displayName string, intrinsic []domain.Trait) []domain.Trait {
	var afterTraits []domain.Trait
	afterNames := make(map[string]bool)
	for _, rule := range tm.after {
		if afterNames[rule.Trait.Name] || !rule.Regex.MatchString(displayName) {
			continue
		}
		afterNames[rule.Trait.Name] = true
		afterTraits = append(afterTraits, rule.Trait)
	}

	covered := make(map[string]bool, len(afterNames)+len(intrinsic))
	for name := range afterNames {
		covered[name] = true
	}
	for _, t := range intrinsic {
		covered[t.Name] = true
	}

	var beforeTraits []domain.Trait
	for _, rule := range tm.before {
		if covered[rule.Trait.Name] || !rule.Regex.MatchString(displayName) {
			continue
		}
		beforeTraits = append(beforeTraits, rule.Trait)
	}

	final := make([]domain.Trait, 0, len(beforeTraits)+len(intrinsic)+len(afterTraits))
	final = append(final, beforeTraits...)
	for _, t := range intrinsic {
		if !afterNames[t.Name] {
			final = append(final, t)
		}
	}
	final = append(final, afterTraits...)
	return final
}
