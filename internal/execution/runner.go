package execution

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gtp/internal/config"
	"gtp/internal/domain"
	"gtp/internal/parser"
)

// Launcher runs an executable and streams its output
type Launcher interface {
	RunStreaming(ctx context.Context, executable string, args []string, dir, pathExt string, onLine func(string)) (int, error)
}

// Runner executes a batch of test cases of one executable
type Runner struct {
	config   *config.Config
	launcher Launcher
	parser   parser.Parser
	output   io.Writer
	logger   *slog.Logger
}

// NewRunner creates a new Runner. output receives the raw test output when
// print_test_output is enabled and may be nil.
func NewRunner(cfg *config.Config, launcher Launcher, p parser.Parser, output io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		config:   cfg,
		launcher: launcher,
		parser:   p,
		output:   output,
		logger:   logger,
	}
}

// Run executes testCases, which must all belong to executable, and returns one
// result per test case. Tests the executable never reported are NotFound.
func (r *Runner) Run(ctx context.Context, executable string, testCases []domain.TestCase) []domain.TestResult {
	if len(testCases) == 0 {
		return nil
	}

	args := r.Args(executable, testCases)
	var lines []string
	exitCode, err := r.launcher.RunStreaming(ctx, executable, args, filepath.Dir(executable), r.config.GetPathExtension(executable),
		func(line string) {
			lines = append(lines, line)
			if r.config.PrintTestOutput && r.output != nil {
				fmt.Fprintln(r.output, line)
			}
		})
	if err != nil {
		r.logger.Error("failed to run tests",
			"executable", executable,
			"command", executable+" "+strings.Join(args, " "),
			"working_directory", filepath.Dir(executable),
			"error", err)
	} else if exitCode != 0 {
		r.logger.Debug("test executable exited with non zero code", "executable", executable, "exit_code", exitCode)
	}

	parsed := r.parser.Parse(byNameLength(testCases), lines)
	results := parsed.TestResults

	reported := make(map[string]bool, len(results))
	for _, res := range results {
		reported[res.TestCase.FullyQualifiedName] = true
	}
	for _, tc := range testCases {
		if reported[tc.FullyQualifiedName] {
			continue
		}
		results = append(results, notFound(tc, parsed.CrashedTestCase, err))
	}
	return results
}

// byNameLength returns a copy of testCases, shortest name first, so a run line
// naming a test exactly matches it before any longer test it prefixes
func byNameLength(testCases []domain.TestCase) []domain.TestCase {
	sorted := append([]domain.TestCase(nil), testCases...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].FullyQualifiedName) < len(sorted[j].FullyQualifiedName)
	})
	return sorted
}

// Args returns the command line arguments running exactly testCases
func (r *Runner) Args(executable string, testCases []domain.TestCase) []string {
	names := make([]string, len(testCases))
	for i, tc := range testCases {
		names[i] = tc.FullyQualifiedName
	}

	args := []string{config.FilterOption + strings.Join(names, ":")}
	if r.config.RunDisabledTests {
		args = append(args, config.AlsoRunDisabledTestsOption)
	}
	if r.config.ShuffleTests {
		args = append(args, config.ShuffleTestsOption)
		if r.config.ShuffleTestsSeed != 0 {
			args = append(args, config.ShuffleTestsSeedOption+strconv.Itoa(r.config.ShuffleTestsSeed))
		}
	}
	return append(args, r.config.GetAdditionalTestExecutionParams(executable)...)
}

func notFound(tc domain.TestCase, crashed *domain.TestCase, runErr error) domain.TestResult {
	result := domain.TestResult{TestCase: tc, Outcome: domain.OutcomeNotFound}
	switch {
	case runErr != nil:
		result.ErrorMessage = fmt.Sprintf("test executable could not be run: %v", runErr)
	case crashed != nil:
		result.ErrorMessage = fmt.Sprintf("reason is probably a crash of test %s", crashed.FullyQualifiedName)
	default:
		result.ErrorMessage = "test was not reported by the executable"
	}
	return result
}
