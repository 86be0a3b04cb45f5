package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtp/internal/domain"
)

type memoryStorage struct {
	saved   []domain.TestResultsOutput
	saveErr error
}

func (m *memoryStorage) Save([]domain.TestResult, time.Duration, int) error { return nil }

func (m *memoryStorage) Load() (*domain.TestResultsOutput, error) { return nil, nil }

func (m *memoryStorage) SaveOutput(output *domain.TestResultsOutput) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, *output)
	return nil
}

func sampleOutput() *domain.TestResultsOutput {
	return &domain.TestResultsOutput{Details: []domain.TestFailure{
		{TestName: "Math.Adds", Executable: "/bin/math", Outcome: "failed"},
		{TestName: "Math.Divides", Executable: "/bin/math", Outcome: "failed", Crashed: true, Resolved: true},
		{TestName: "Db.Connects", Executable: "/bin/db", Outcome: "not found"},
	}}
}

func TestErrorViewer_ToggleResolved(t *testing.T) {
	st := &memoryStorage{}
	viewer := NewErrorViewer(st)
	results := sampleOutput()

	require.NoError(t, viewer.ToggleResolved(results, 0))
	assert.True(t, results.Details[0].Resolved)
	require.Len(t, st.saved, 1)
	assert.True(t, st.saved[0].Details[0].Resolved)

	require.NoError(t, viewer.ToggleResolved(results, 0))
	assert.False(t, results.Details[0].Resolved)
	assert.Len(t, st.saved, 2)

	assert.Error(t, viewer.ToggleResolved(results, 3))
	assert.Error(t, viewer.ToggleResolved(results, -1))
	assert.Len(t, st.saved, 2)
}

func TestErrorViewer_ToggleResolvedSaveError(t *testing.T) {
	viewer := NewErrorViewer(&memoryStorage{saveErr: errors.New("disk full")})

	err := viewer.ToggleResolved(sampleOutput(), 1)
	assert.ErrorContains(t, err, "disk full")
}

func TestNextUnresolved(t *testing.T) {
	failures := sampleOutput().Details

	assert.Equal(t, 2, nextUnresolved(failures, 0))
	assert.Equal(t, 0, nextUnresolved(failures, 2))

	for i := range failures {
		failures[i].Resolved = true
	}
	assert.Equal(t, -1, nextUnresolved(failures, 0))
	assert.Equal(t, 0, unresolvedCount(failures))
}

func TestErrorViewer_FormatFailure(t *testing.T) {
	viewer := NewErrorViewer(&memoryStorage{})
	failure := domain.TestFailure{
		TestName:   "Math.Divides",
		Executable: "/bin/math",
		File:       "math_test.cc",
		Line:       40,
		Message:    "boom",
		Outcome:    "failed",
		DurationMs: 12,
		Crashed:    true,
	}

	details := viewer.formatFailureDetails(failure)
	assert.Contains(t, details, "Test: Math.Divides")
	assert.Contains(t, details, "Executable: /bin/math")
	assert.Contains(t, details, "Location: math_test.cc:40")
	assert.Contains(t, details, "(crashed)")
	assert.Contains(t, details, "Duration: 12ms")
	assert.Contains(t, details, "boom")

	assert.Equal(t, "[cyan]executable:[white] [yellow]/bin/math[white]::[yellow]Math.Divides[white]\n",
		viewer.formatFailureStats(failure, 1))
	assert.Contains(t, viewer.formatFailureStats(domain.TestFailure{}, 4), "Unknown executable")
	assert.Contains(t, viewer.formatFailureStats(domain.TestFailure{}, 4), "Test 4")
}
