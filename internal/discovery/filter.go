package discovery

import (
	"path/filepath"
	"strings"

	"gtp/internal/domain"
)

// Filter filters executables and test cases by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName filters executable paths by file name using wildcard matching
// Supports patterns like "*math_tests" or "*db*"
func (f *Filter) FilterByName(executables []string, pattern string) []string {
	if pattern == "" {
		return executables
	}

	var filtered []string
	for _, exe := range executables {
		if Matches(filepath.Base(exe), pattern) {
			filtered = append(filtered, exe)
		}
	}
	return filtered
}

// FilterTestCases keeps the test cases whose fully qualified or display name matches pattern
func (f *Filter) FilterTestCases(testCases []domain.TestCase, pattern string) []domain.TestCase {
	if pattern == "" {
		return testCases
	}

	var filtered []domain.TestCase
	for _, tc := range testCases {
		if Matches(tc.FullyQualifiedName, pattern) || Matches(tc.DisplayName, pattern) {
			filtered = append(filtered, tc)
		}
	}
	return filtered
}

// Matches reports whether name matches pattern. Patterns with * or ? are
// wildcards; anything else is a substring.
func Matches(name, pattern string) bool {
	// Try to match using filepath.Match (supports * and ? wildcards)
	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}

	// If no wildcards, do a simple contains check
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(name, pattern)
	}

	if !strings.Contains(pattern, "*") {
		return false
	}

	// filepath.Match stops at separators, parameterized names contain "/".
	// Match the parts between wildcards in order instead.
	parts := strings.Split(pattern, "*")
	hasNonEmptyPart := false
	rest := name
	for i, part := range parts {
		if part == "" {
			continue
		}
		hasNonEmptyPart = true
		idx := strings.Index(rest, part)
		if idx < 0 || (i == 0 && idx != 0) {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if !hasNonEmptyPart {
		return true
	}
	last := parts[len(parts)-1]
	return last == "" || strings.HasSuffix(name, last)
}
