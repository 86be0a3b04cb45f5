package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gtp/internal/config"
)

// DiscoverCommand handles the discover command
type DiscoverCommand struct {
	config *config.Config
	deps   *Dependencies
}

// NewDiscoverCommand creates a new DiscoverCommand
func NewDiscoverCommand(cfg *config.Config, deps *Dependencies) *DiscoverCommand {
	return &DiscoverCommand{
		config: cfg,
		deps:   deps,
	}
}

// Execute runs the command
func (dc *DiscoverCommand) Execute(cmd *cobra.Command, args []string) error {
	testCases, reports, err := dc.deps.TestCases(cmd.Context(), args)
	if err != nil {
		return err
	}

	if dc.config.Flags.JSON {
		return dc.deps.Formatter.PrintJSON(testCases)
	}

	dc.deps.Formatter.PrintDiscoveryErrors(reports)
	if len(testCases) == 0 {
		color.Yellow("No tests found")
		return nil
	}
	dc.deps.Formatter.PrintTestCases(testCases)
	return nil
}
