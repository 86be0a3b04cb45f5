package commands

import (
	"github.com/spf13/cobra"

	"gtp/internal/config"
	"gtp/internal/ui"
)

// FaillsCommand handles the faills command
type FaillsCommand struct {
	config *config.Config
	deps   *Dependencies
}

// NewFaillsCommand creates a new FaillsCommand
func NewFaillsCommand(cfg *config.Config, deps *Dependencies) *FaillsCommand {
	return &FaillsCommand{
		config: cfg,
		deps:   deps,
	}
}

// Execute runs the command
func (fc *FaillsCommand) Execute(cmd *cobra.Command, args []string) error {
	st, err := fc.deps.Storage()
	if err != nil {
		return err
	}
	results, err := st.Load()
	if err != nil {
		return err
	}

	return ui.NewErrorViewer(st).View(results)
}
