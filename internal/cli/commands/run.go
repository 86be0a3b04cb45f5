package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gtp/internal/config"
	"gtp/internal/domain"
	"gtp/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	config *config.Config
	deps   *Dependencies
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(cfg *config.Config, deps *Dependencies) *RunCommand {
	return &RunCommand{
		config: cfg,
		deps:   deps,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	testCases, reports, err := rc.deps.TestCases(ctx, args)
	if err != nil {
		return err
	}
	rc.deps.Formatter.PrintDiscoveryErrors(reports)

	st, err := rc.deps.Storage()
	if err != nil {
		return err
	}

	if rc.config.Flags.OnlyFailed {
		last, err := st.Load()
		if err != nil {
			return fmt.Errorf("failed to load last run: %w", err)
		}
		testCases = onlyFailed(testCases, last)
	}

	if len(testCases) == 0 {
		color.Yellow("No tests to execute")
		return nil
	}

	progressBar := ui.NewProgressBar(len(testCases), os.Stderr)
	rc.deps.Executor.SetProgress(progressBar)

	results, duration, err := rc.deps.Executor.ExecuteWithOptions(ctx, testCases, rc.config.Flags.FailFast)
	if err != nil {
		return err
	}

	if err := st.Save(results, duration, rc.config.Processors); err != nil {
		return fmt.Errorf("failed to save test results: %w", err)
	}

	output, err := st.Load()
	if err != nil {
		return fmt.Errorf("failed to load test results: %w", err)
	}
	rc.deps.Formatter.PrintMetaStats(output)

	if len(output.Details) > 0 && rc.config.Flags.OpenFaills {
		return ui.NewErrorViewer(st).View(output)
	}
	if len(output.Details) > 0 {
		return fmt.Errorf("%d test case(s) did not pass", len(output.Details))
	}
	return nil
}

// onlyFailed keeps the test cases that did not pass in last
func onlyFailed(testCases []domain.TestCase, last *domain.TestResultsOutput) []domain.TestCase {
	failed := make(map[string]bool, len(last.Details))
	for _, f := range last.Details {
		failed[f.Executable+"::"+f.TestName] = true
	}

	var kept []domain.TestCase
	for _, tc := range testCases {
		if failed[tc.Key()] {
			kept = append(kept, tc)
		}
	}
	return kept
}
