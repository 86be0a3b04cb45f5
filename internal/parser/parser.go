// Package parser turns the console output of test executables into results.
package parser

import "gtp/internal/domain"

// Parser parses the output of one run of an executable
type Parser interface {
	Parse(testCases []domain.TestCase, output []string) Results
}

// Results holds the results of one run, in output order
type Results struct {
	TestResults []domain.TestResult
	// CrashedTestCase is the last test detected as crashed, nil if none
	CrashedTestCase *domain.TestCase
}

// Failures returns the persisted form of every non-passing result
func Failures(results []domain.TestResult) []domain.TestFailure {
	var failures []domain.TestFailure
	for _, r := range results {
		if r.Outcome != domain.OutcomePassed {
			failures = append(failures, domain.NewTestFailure(r))
		}
	}
	return failures
}
