package discovery

import (
	"regexp"
	"strings"

	"gtp/internal/domain"
)

var (
	// "Suite." or "Prefix/Typed/0.  # TypeParam = int"
	suiteLinePattern = regexp.MustCompile(`^([^\s#]+)\.\s*(?:# TypeParam = (.*))?$`)

	// "  Name", "  Name/0  # GetParam() = 7", "  Name [Category=Fast][Owner=core]"
	caseLinePattern = regexp.MustCompile(`^  ([^\s#\[]+)((?:\s*\[[^\]=]+=[^\]]*\])*)\s*(?:# GetParam\(\) = (.*))?$`)

	traitPattern = regexp.MustCompile(`\[([^\]=]+)=([^\]]*)\]`)
)

// ListingState is the fold state threaded through the lines of a test listing
type ListingState struct {
	Suite     string
	TypeParam string
}

// ListParser turns --gtest_list_tests output into test case descriptors
type ListParser struct {
	separator string
}

// NewListParser creates a ListParser; a non-empty separator replaces "/" in display names
func NewListParser(testNameSeparator string) *ListParser {
	return &ListParser{separator: testNameSeparator}
}

// ParseLine consumes one line. It returns the next state and the descriptor
// completed by this line, if any. Lines of unknown shape leave the state unchanged.
func (p *ListParser) ParseLine(state ListingState, line string) (ListingState, *domain.TestCaseDescriptor) {
	line = strings.TrimRight(line, "\r")

	if m := suiteLinePattern.FindStringSubmatch(line); m != nil {
		return ListingState{Suite: m[1], TypeParam: strings.TrimSpace(m[2])}, nil
	}

	m := caseLinePattern.FindStringSubmatch(line)
	if m == nil || state.Suite == "" {
		return state, nil
	}

	d := p.descriptor(state, m[1], parseInlineTraits(m[2]), strings.TrimSpace(m[3]))
	return state, &d
}

// Parse folds over all lines and returns the descriptors in listing order
func (p *ListParser) Parse(lines []string) []domain.TestCaseDescriptor {
	var (
		state       ListingState
		descriptors []domain.TestCaseDescriptor
	)
	for _, line := range lines {
		var d *domain.TestCaseDescriptor
		state, d = p.ParseLine(state, line)
		if d != nil {
			descriptors = append(descriptors, *d)
		}
	}
	return descriptors
}

func (p *ListParser) descriptor(state ListingState, name string, traits []domain.Trait, param string) domain.TestCaseDescriptor {
	fqn := state.Suite + "." + name

	displayName := fqn
	if p.separator != "" {
		displayName = strings.ReplaceAll(displayName, "/", p.separator)
	}

	kind := domain.KindSimple
	switch {
	case state.TypeParam != "":
		kind = domain.KindTyped
		displayName += "<" + state.TypeParam + ">"
	case param != "" || strings.Contains(name, "/"):
		kind = domain.KindParameterized
	}
	if param != "" {
		displayName += " [" + param + "]"
	}

	return domain.TestCaseDescriptor{
		Suite:              state.Suite,
		Name:               name,
		FullyQualifiedName: fqn,
		DisplayName:        displayName,
		Param:              param,
		TypeParam:          state.TypeParam,
		Kind:               kind,
		Traits:             traits,
	}
}

func parseInlineTraits(s string) []domain.Trait {
	matches := traitPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	traits := make([]domain.Trait, 0, len(matches))
	for _, m := range matches {
		traits = append(traits, domain.Trait{
			Name:  strings.TrimSpace(m[1]),
			Value: strings.TrimSpace(m[2]),
		})
	}
	return traits
}
