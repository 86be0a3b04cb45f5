package domain

// TestFailure represents a failed, crashed or missing test case
type TestFailure struct {
	TestName   string `json:"test_name"`
	Executable string `json:"executable"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms"`
	Crashed    bool   `json:"crashed,omitempty"`
	Resolved   bool   `json:"resolved,omitempty"` // Track if test case is marked as resolved
}

// NewTestFailure builds the persisted form of a non-passing result
func NewTestFailure(r TestResult) TestFailure {
	return TestFailure{
		TestName:   r.TestCase.FullyQualifiedName,
		Executable: r.TestCase.Executable,
		File:       r.TestCase.SourceFile,
		Line:       r.TestCase.Line,
		Message:    r.ErrorMessage,
		Outcome:    r.Outcome.String(),
		DurationMs: r.Duration.Milliseconds(),
		Crashed:    r.Crashed,
	}
}
