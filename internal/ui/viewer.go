package ui

import "gtp/internal/domain"

// Viewer displays stored test results
type Viewer interface {
	View(results *domain.TestResultsOutput) error
}
