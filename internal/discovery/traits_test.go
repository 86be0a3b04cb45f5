package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtp/internal/config"
	"gtp/internal/domain"
)

func rule(t *testing.T, pattern, name, value string) config.RegexTraitPair {
	t.Helper()
	pair, err := config.NewRegexTraitPair(pattern, name, value)
	require.NoError(t, err)
	return pair
}

func TestTraitMerger_Merge(t *testing.T) {
	tests := map[string]struct {
		before    []config.RegexTraitPair
		after     []config.RegexTraitPair
		intrinsic []domain.Trait
		want      []domain.Trait
	}{
		"no rules keeps intrinsic traits": {
			intrinsic: []domain.Trait{{Name: "Category", Value: "Fast"}},
			want:      []domain.Trait{{Name: "Category", Value: "Fast"}},
		},
		"after rule overrides intrinsic and before": {
			before:    []config.RegexTraitPair{rule(t, "Math", "Category", "Default")},
			after:     []config.RegexTraitPair{rule(t, "Math", "Category", "Slow")},
			intrinsic: []domain.Trait{{Name: "Category", Value: "Fast"}},
			want:      []domain.Trait{{Name: "Category", Value: "Slow"}},
		},
		"intrinsic overrides before": {
			before:    []config.RegexTraitPair{rule(t, ".*", "Category", "Default")},
			intrinsic: []domain.Trait{{Name: "Category", Value: "Fast"}},
			want:      []domain.Trait{{Name: "Category", Value: "Fast"}},
		},
		"before applies when name not covered": {
			before:    []config.RegexTraitPair{rule(t, ".*", "Owner", "core")},
			intrinsic: []domain.Trait{{Name: "Category", Value: "Fast"}},
			want: []domain.Trait{
				{Name: "Owner", Value: "core"},
				{Name: "Category", Value: "Fast"},
			},
		},
		"non matching rules are ignored": {
			before: []config.RegexTraitPair{rule(t, "^Strings", "Owner", "text")},
			after:  []config.RegexTraitPair{rule(t, "^Strings", "Category", "Slow")},
			want:   []domain.Trait{},
		},
		"after rules deduplicated by name keeping first": {
			after: []config.RegexTraitPair{
				rule(t, "Math", "Category", "Slow"),
				rule(t, ".*", "Category", "Medium"),
				rule(t, ".*", "Owner", "core"),
			},
			want: []domain.Trait{
				{Name: "Category", Value: "Slow"},
				{Name: "Owner", Value: "core"},
			},
		},
		"concatenation order before, test, after": {
			before:    []config.RegexTraitPair{rule(t, ".*", "Type", "Unit")},
			after:     []config.RegexTraitPair{rule(t, ".*", "Owner", "core")},
			intrinsic: []domain.Trait{{Name: "Category", Value: "Fast"}},
			want: []domain.Trait{
				{Name: "Type", Value: "Unit"},
				{Name: "Category", Value: "Fast"},
				{Name: "Owner", Value: "core"},
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			merger := NewTraitMerger(tt.before, tt.after)
			assert.Equal(t, tt.want, merger.Merge("Math.Adds", tt.intrinsic))
		})
	}
}

func TestTraitMerger_SingleCategory(t *testing.T) {
	merger := NewTraitMerger(
		[]config.RegexTraitPair{rule(t, ".*", "Category", "Default")},
		[]config.RegexTraitPair{rule(t, ".*", "Category", "Slow")},
	)

	got := merger.Merge("Suite.Test", []domain.Trait{{Name: "Category", Value: "Fast"}})

	var categories []domain.Trait
	for _, tr := range got {
		if tr.Name == "Category" {
			categories = append(categories, tr)
		}
	}
	require.Len(t, categories, 1)
	assert.Equal(t, "Slow", categories[0].Value)
}
