package domain

// Trait is a name/value tag attached to a test case
type Trait struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// DescriptorKind tells how a test was declared
type DescriptorKind int

const (
	// KindSimple is a TEST or TEST_F test
	KindSimple DescriptorKind = iota
	// KindParameterized is a TEST_P instance
	KindParameterized
	// KindTyped is a TYPED_TEST or TYPED_TEST_P instance
	KindTyped
)

// TestCaseDescriptor is one test as printed by --gtest_list_tests, before location resolution
type TestCaseDescriptor struct {
	Suite              string // Suite name as listed, without the trailing dot
	Name               string // Test name as listed
	FullyQualifiedName string // Suite + "." + Name
	DisplayName        string // Human readable name, with type and value parameters
	Param              string // Value parameter (GetParam), if any
	TypeParam          string // Type parameter (TypeParam), if any
	Kind               DescriptorKind
	Traits             []Trait // Inline traits from the listing
}

// TestCase represents a single discovered test within an executable
type TestCase struct {
	FullyQualifiedName string  `json:"fully_qualified_name"`
	Executable         string  `json:"executable"`
	DisplayName        string  `json:"display_name"`
	SourceFile         string  `json:"source_file,omitempty"`
	Line               int     `json:"line,omitempty"`
	Traits             []Trait `json:"traits,omitempty"`
}

// Key identifies a test case across executables
func (tc TestCase) Key() string {
	return tc.Executable + "::" + tc.FullyQualifiedName
}

// TestCaseLocation is where a test body symbol lives in source
type TestCaseLocation struct {
	Symbol     string
	SourceFile string
	Line       int
	Traits     []Trait
}
