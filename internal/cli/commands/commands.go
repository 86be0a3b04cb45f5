package commands

import (
	"gtp/internal/cli"
	"gtp/internal/config"

	"github.com/spf13/cobra"
)

// Commands holds all CLI commands
type Commands struct {
	config   *config.Config
	deps     *Dependencies
	Discover *DiscoverCommand
	Run      *RunCommand
	Faills   *FaillsCommand
}

// NewCommands creates all commands. Their dependencies are built once flags are parsed.
func NewCommands(cfg *config.Config) *Commands {
	deps := &Dependencies{}
	return &Commands{
		config:   cfg,
		deps:     deps,
		Discover: NewDiscoverCommand(cfg, deps),
		Run:      NewRunCommand(cfg, deps),
		Faills:   NewFaillsCommand(cfg, deps),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	prepare := func(cmd *cobra.Command, args []string) error {
		return c.prepare(flags)
	}

	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Settings file (default: gtp.yaml in the project)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	discoverCmd := &cobra.Command{
		Use:     "discover [executables or directories...]",
		Aliases: []string{"list"},
		Short:   "List the tests of GoogleTest executables",
		Long:    "Run the test executables with --gtest_list_tests and resolve the source location and traits of every test",
		RunE:    c.Discover.Execute,
		PreRunE: prepare,
	}
	discoverCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Folder where test executable detection should start")
	discoverCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter test cases by name pattern (supports wildcards, e.g. 'Math.*' or '*Divides*')")
	discoverCmd.Flags().StringVarP(&flags.ExecutableFilter, "executables", "e", "", "Filter test executables by file name pattern")
	discoverCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of executables to list in parallel")
	discoverCmd.Flags().BoolVar(&flags.Streaming, "streaming", false, "Report test cases while the listing is parsed")
	discoverCmd.Flags().BoolVar(&flags.NoSymbols, "no-symbols", false, "Skip source location and trait resolution from debug symbols")
	discoverCmd.Flags().BoolVar(&flags.JSON, "json", false, "Print the test cases as JSON")
	rootCmd.AddCommand(discoverCmd)

	runCmd := &cobra.Command{
		Use:     "run [executables or directories...]",
		Short:   "Run GoogleTest tests in parallel",
		Long:    "Discover and execute GoogleTest tests using parallel workers",
		RunE:    c.Run.Execute,
		PreRunE: prepare,
	}
	runCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of processors to use")
	runCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Folder where test executable detection should start")
	runCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter test cases by name pattern (supports wildcards, e.g. 'Math.*' or '*Divides*')")
	runCmd.Flags().StringVarP(&flags.ExecutableFilter, "executables", "e", "", "Filter test executables by file name pattern")
	runCmd.Flags().BoolVar(&flags.NoSymbols, "no-symbols", false, "Skip source location and trait resolution from debug symbols")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop on first test failure")
	runCmd.Flags().BoolVar(&flags.OnlyFailed, "failed", false, "Run only tests that did not pass in the last run")
	runCmd.Flags().BoolVar(&flags.OpenFaills, "open-faills", false, "Open the faills viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	faillsCmd := &cobra.Command{
		Use:     "faills",
		Short:   "View test failures interactively",
		Long:    "Display test failures from the last test run in an interactive viewer",
		RunE:    c.Faills.Execute,
		PreRunE: prepare,
	}
	rootCmd.AddCommand(faillsCmd)
}

// prepare applies the settings file, the environment and then the flags, and
// builds the dependencies from the result
func (c *Commands) prepare(flags *cli.Flags) error {
	c.config.Flags = flags.ToConfigFlags()
	if err := c.config.LoadFile(c.config.GetConfigPath()); err != nil {
		return err
	}
	if err := c.config.LoadEnv(); err != nil {
		return err
	}
	c.config.ApplyFlags(flags.ToConfigFlags())

	deps, err := NewDependencies(c.config)
	if err != nil {
		return err
	}
	*c.deps = *deps
	return nil
}
