package storage

import (
	"time"

	"gtp/internal/config"
	"gtp/internal/domain"
	"gtp/internal/parser"
)

// Storage persists and loads test run results (e.g. for the faills viewer).
type Storage interface {
	Save(results []domain.TestResult, duration time.Duration, workers int) error
	Load() (*domain.TestResultsOutput, error)
	// SaveOutput replaces the last run with output (e.g. after marking failures resolved).
	SaveOutput(output *domain.TestResultsOutput) error
}

// New returns MySQL storage when a results DSN is configured, JSON file storage otherwise.
func New(cfg *config.Config) (Storage, error) {
	if cfg.ResultsDSN != "" {
		s, err := NewMySQLStorage(cfg.ResultsDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return NewJSONStorage(cfg), nil
}

// BuildOutput summarizes results into the persisted output shape
func BuildOutput(results []domain.TestResult, duration time.Duration, workers int) domain.TestResultsOutput {
	meta := domain.TestResultsMeta{
		TotalTestCases:  len(results),
		Duration:        duration.String(),
		DurationSeconds: duration.Seconds(),
		Workers:         workers,
		Timestamp:       time.Now().Format(time.RFC3339),
	}

	executables := make(map[string]bool)
	for _, r := range results {
		executables[r.TestCase.Executable] = true
		switch r.Outcome {
		case domain.OutcomePassed:
			meta.PassedTestCases++
			continue
		case domain.OutcomeFailed:
			meta.FailedTestCases++
		case domain.OutcomeNotFound:
			meta.NotFoundTestCases++
		}
		if r.Crashed {
			meta.CrashedTestCases++
		}
	}
	meta.Executables = len(executables)

	details := parser.Failures(results)
	if details == nil {
		details = make([]domain.TestFailure, 0)
	}

	return domain.TestResultsOutput{Meta: meta, Details: details}
}

var (
	_ Storage = (*JSONStorage)(nil)
	_ Storage = (*MySQLStorage)(nil)
)
