package execution

import (
	"context"
	"time"

	"gtp/internal/domain"
)

// Executor executes tests and returns results
type Executor interface {
	Execute(ctx context.Context, testCases []domain.TestCase) ([]domain.TestResult, time.Duration, error)
}

var _ Executor = (*WorkerPool)(nil)
