package execution

import "gtp/internal/domain"

// Batch is a set of test cases run by one process of their executable
type Batch struct {
	Executable string
	TestCases  []domain.TestCase
}

// Scheduler distributes tests across workers
type Scheduler interface {
	Schedule(testCases []domain.TestCase, workerCount int) []Batch
}

// RoundRobinScheduler distributes the tests of every executable evenly across workers
type RoundRobinScheduler struct{}

// NewRoundRobinScheduler creates a new RoundRobinScheduler
func NewRoundRobinScheduler() *RoundRobinScheduler {
	return &RoundRobinScheduler{}
}

// Schedule splits the tests of each executable into at most workerCount
// non-empty batches using round-robin. Executables keep their first-seen order.
func (s *RoundRobinScheduler) Schedule(testCases []domain.TestCase, workerCount int) []Batch {
	if workerCount <= 0 {
		workerCount = 1
	}

	var order []string
	byExecutable := make(map[string][]domain.TestCase)
	for _, tc := range testCases {
		if _, ok := byExecutable[tc.Executable]; !ok {
			order = append(order, tc.Executable)
		}
		byExecutable[tc.Executable] = append(byExecutable[tc.Executable], tc)
	}

	var batches []Batch
	for _, exe := range order {
		tests := byExecutable[exe]
		n := min(workerCount, len(tests))

		distribution := make([][]domain.TestCase, n)
		for i, tc := range tests {
			workerIndex := i % n
			distribution[workerIndex] = append(distribution[workerIndex], tc)
		}
		for _, d := range distribution {
			batches = append(batches, Batch{Executable: exe, TestCases: d})
		}
	}

	return batches
}
