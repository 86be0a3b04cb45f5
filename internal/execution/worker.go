package execution

import (
	"context"
	"sync"
	"time"

	"gtp/internal/config"
	"gtp/internal/domain"
)

// Progress receives the running pass and fail counts
type Progress interface {
	Update(successCount, failCount int)
	Finish()
}

// BatchRunner runs one batch of test cases of an executable
type BatchRunner interface {
	Run(ctx context.Context, executable string, testCases []domain.TestCase) []domain.TestResult
}

// WorkerPool manages a pool of workers for parallel test execution
type WorkerPool struct {
	config    *config.Config
	runner    BatchRunner
	scheduler Scheduler
	progress  Progress
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(cfg *config.Config, runner BatchRunner, scheduler Scheduler) *WorkerPool {
	return &WorkerPool{
		config:    cfg,
		runner:    runner,
		scheduler: scheduler,
	}
}

// SetProgress sets the progress bar for the worker pool
func (wp *WorkerPool) SetProgress(progress Progress) {
	wp.progress = progress
}

// Execute executes tests in parallel using worker pool (no fail-fast).
func (wp *WorkerPool) Execute(ctx context.Context, testCases []domain.TestCase) ([]domain.TestResult, time.Duration, error) {
	return wp.ExecuteWithOptions(ctx, testCases, false)
}

// ExecuteWithOptions executes tests with optional fail-fast. On the first
// failure the remaining batches are skipped and running processes are killed,
// which reports their current tests as crashed.
func (wp *WorkerPool) ExecuteWithOptions(ctx context.Context, testCases []domain.TestCase, failFast bool) ([]domain.TestResult, time.Duration, error) {
	if len(testCases) == 0 {
		return nil, 0, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerCount := wp.config.Processors
	if workerCount <= 0 {
		workerCount = 1
	}
	batches := wp.scheduler.Schedule(testCases, workerCount)

	batchQueue := make(chan Batch, 1)
	results := make(chan []domain.TestResult, len(batches))

	go func() {
		defer close(batchQueue)
		for _, batch := range batches {
			select {
			case <-ctx.Done():
				return
			case batchQueue <- batch:
			}
		}
	}()

	var mu sync.Mutex
	var passedCases, failedCases int
	startTime := time.Now()

	var wg sync.WaitGroup
	for i := 1; i <= workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batchQueue {
				if ctx.Err() != nil {
					continue
				}
				batchResults := wp.runner.Run(ctx, batch.Executable, batch.TestCases)
				results <- batchResults

				mu.Lock()
				for _, r := range batchResults {
					if r.Outcome == domain.OutcomePassed {
						passedCases++
					} else {
						failedCases++
					}
				}
				if wp.progress != nil {
					wp.progress.Update(passedCases, failedCases)
				}
				if failFast && failedCases > 0 {
					cancel()
				}
				mu.Unlock()
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var allResults []domain.TestResult
	for batchResults := range results {
		allResults = append(allResults, batchResults...)
	}
	if wp.progress != nil {
		wp.progress.Finish()
	}
	return allResults, time.Since(startTime), nil
}
