// Package signature derives test body symbol names from listed tests and
// normalizes symbol names so both sides compare equal.
package signature

import (
	"regexp"
	"strings"

	"gtp/internal/config"
	"gtp/internal/domain"
)

// Normalize strips the namespace and class qualification in front of the
// test class of a "...::TestBody" symbol. Only separators that end before
// the test body suffix are considered.
func Normalize(symbol string) string {
	end := len(symbol) - len(config.TestBodySignature)
	if end <= 0 {
		return symbol
	}
	namespaceEnd := strings.LastIndex(symbol[:end], "::")
	if namespaceEnd < 0 {
		return symbol
	}
	return symbol[namespaceEnd+2:]
}

var (
	typeKeyword      = regexp.MustCompile(`\b(?:class|struct|enum|union) `)
	closingTemplates = regexp.MustCompile(`>\s+>`)
)

// Creator produces the candidate test body symbols of a descriptor
type Creator struct{}

// NewCreator creates a new Creator
func NewCreator() *Creator {
	return &Creator{}
}

// Signatures returns the candidate symbols of the descriptor's test body, most specific first
func (c *Creator) Signatures(d domain.TestCaseDescriptor) []string {
	switch d.Kind {
	case domain.KindTyped:
		// Prefix/Suite/0 or Suite/0
		suite := lastSegment(dropLastSegment(d.Suite))
		return typedSignatures(suite, d.Name, d.TypeParam)
	case domain.KindParameterized:
		// Prefix/Suite with Name/0
		return []string{testClass(lastSegment(d.Suite), dropLastSegment(d.Name)) + config.TestBodySignature}
	}
	return []string{testClass(d.Suite, d.Name) + config.TestBodySignature}
}

// NormalizedSignatures returns Signatures passed through Normalize, order kept
func (c *Creator) NormalizedSignatures(d domain.TestCaseDescriptor) []string {
	sigs := c.Signatures(d)
	out := make([]string, 0, len(sigs))
	for _, s := range sigs {
		out = appendUnique(out, Normalize(s))
	}
	return out
}

func typedSignatures(suite, name, typeParam string) []string {
	class := testClass(suite, name)
	variants := []string{
		typeParam,
		typeKeyword.ReplaceAllString(typeParam, ""),
		closingTemplates.ReplaceAllString(typeKeyword.ReplaceAllString(typeParam, ""), ">>"),
		closingTemplates.ReplaceAllString(typeParam, ">>"),
	}

	var sigs []string
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		sigs = appendUnique(sigs, class+"<"+v+">"+config.TestBodySignature)
	}
	if len(sigs) == 0 {
		sigs = append(sigs, class+config.TestBodySignature)
	}
	return sigs
}

func testClass(suite, name string) string {
	return suite + "_" + name + "_Test"
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func dropLastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[:i]
	}
	return s
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
