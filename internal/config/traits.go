package config

import (
	"fmt"
	"regexp"
	"strings"

	"gtp/internal/domain"
)

// RegexTraitPair assigns Trait to every test whose display name matches Regex
type RegexTraitPair struct {
	Regex *regexp.Regexp
	Trait domain.Trait
}

// NewRegexTraitPair compiles pattern into a trait rule
func NewRegexTraitPair(pattern, name, value string) (RegexTraitPair, error) {
	if name == "" {
		return RegexTraitPair{}, fmt.Errorf("trait rule %q has no trait name", pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RegexTraitPair{}, fmt.Errorf("invalid trait regex %q: %w", pattern, err)
	}
	return RegexTraitPair{Regex: re, Trait: domain.Trait{Name: name, Value: value}}, nil
}

// ParseTraitRegexes parses the compact rule syntax regex///Name,Value//||//regex///Name,Value
func ParseTraitRegexes(s string) ([]RegexTraitPair, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var pairs []RegexTraitPair
	for _, part := range strings.Split(s, TraitsRegexesPairSeparator) {
		if part == "" {
			continue
		}
		regexAndTrait := strings.SplitN(part, TraitsRegexesRegexSeparator, 2)
		if len(regexAndTrait) != 2 {
			return nil, fmt.Errorf("trait rule %q: missing %q between regex and trait", part, TraitsRegexesRegexSeparator)
		}
		nameAndValue := strings.SplitN(regexAndTrait[1], TraitsRegexesTraitSeparator, 2)
		if len(nameAndValue) != 2 {
			return nil, fmt.Errorf("trait rule %q: trait must be Name%sValue", part, TraitsRegexesTraitSeparator)
		}
		pair, err := NewRegexTraitPair(regexAndTrait[0], nameAndValue[0], nameAndValue[1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
