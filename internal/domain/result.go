package domain

import "time"

// Outcome is the result state of a single test case
type Outcome int

const (
	// OutcomeNotFound marks a test that was requested but never reported by the executable
	OutcomeNotFound Outcome = iota
	OutcomePassed
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	default:
		return "not found"
	}
}

// TestResult represents the result of executing a single test case
type TestResult struct {
	TestCase     TestCase
	Outcome      Outcome
	Duration     time.Duration
	ErrorMessage string // Empty unless the test failed
	Crashed      bool   // Output ended before the test finished
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	TotalTestCases    int     `json:"total_test_cases"`
	PassedTestCases   int     `json:"passed_test_cases"`
	FailedTestCases   int     `json:"failed_test_cases"`
	CrashedTestCases  int     `json:"crashed_test_cases"`
	NotFoundTestCases int     `json:"not_found_test_cases"`
	Executables       int     `json:"executables"`
	Duration          string  `json:"duration"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Workers           int     `json:"workers"`
	Timestamp         string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
}
