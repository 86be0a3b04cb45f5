package main

import (
	"fmt"
	"os"

	"gtp/internal/cli"
	"gtp/internal/cli/commands"
	"gtp/internal/config"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "gtp",
		Short:         "GoogleTest discovery and parallel runner",
		Long:          `Discover GoogleTest tests with their source locations and traits, run them in parallel and browse the failures of the last run.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create initial config with defaults
	cfg := config.New()

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	cmds := commands.NewCommands(cfg)
	cmds.Register(rootCmd, &flags, cfg)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
