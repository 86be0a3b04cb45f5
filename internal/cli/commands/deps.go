package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gtp/internal/config"
	"gtp/internal/discovery"
	"gtp/internal/domain"
	"gtp/internal/execution"
	"gtp/internal/logging"
	"gtp/internal/parser"
	"gtp/internal/storage"
	"gtp/internal/symbols"
	"gtp/internal/symbols/native"
	"gtp/internal/ui"
)

// Dependencies are the components shared by the commands
type Dependencies struct {
	Logger     *slog.Logger
	Scanner    *discovery.Scanner
	Filter     *discovery.Filter
	Discoverer *discovery.Discoverer
	Executor   *execution.WorkerPool
	Formatter  *ui.Formatter

	config  *config.Config
	storage storage.Storage
}

// NewDependencies wires the discovery, execution and output components for cfg
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	scanner, err := discovery.NewScanner(cfg.PathsToIgnore, cfg.TestDiscoveryRegex)
	if err != nil {
		return nil, err
	}

	process := execution.NewProcess(logger)
	resolver := symbols.NewResolver(
		native.NewLocator(native.DefaultDebugRoot, logger),
		native.NewProvider(),
		native.NewImportReader(),
		logger,
	)
	factory := discovery.NewFactory(cfg, process, resolver, logger)

	runner := execution.NewRunner(cfg, process, parser.NewGTestParser(logger), os.Stdout, logger)
	executor := execution.NewWorkerPool(cfg, runner, execution.NewRoundRobinScheduler())

	return &Dependencies{
		Logger:     logger,
		Scanner:    scanner,
		Filter:     discovery.NewFilter(),
		Discoverer: discovery.NewDiscoverer(factory, cfg.Processors),
		Executor:   executor,
		Formatter:  ui.NewFormatter(cfg, os.Stdout),
		config:     cfg,
	}, nil
}

// Storage opens the result storage on first use
func (d *Dependencies) Storage() (storage.Storage, error) {
	if d.storage != nil {
		return d.storage, nil
	}
	st, err := storage.New(d.config)
	if err != nil {
		return nil, fmt.Errorf("failed to open result storage: %w", err)
	}
	d.storage = st
	return st, nil
}

// Executables returns the test executables named by paths, scanning
// directories. Without paths the configured test path is scanned.
func (d *Dependencies) Executables(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{d.config.GetTestPath()}
	}

	var executables []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("test path: %w", err)
		}
		if !info.IsDir() {
			if !d.Scanner.Accepts(path) {
				d.Logger.Warn("Skipping path that is not a test executable", "path", path)
				continue
			}
			executables = append(executables, path)
			continue
		}

		found, err := d.Scanner.Scan(path)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		executables = append(executables, found...)
	}

	return d.Filter.FilterByName(executables, d.config.Flags.ExecutableFilter), nil
}

// TestCases discovers the test cases of paths and applies the name filter
func (d *Dependencies) TestCases(ctx context.Context, paths []string) ([]domain.TestCase, []discovery.Report, error) {
	executables, err := d.Executables(paths)
	if err != nil {
		return nil, nil, err
	}

	reports := d.Discoverer.Discover(ctx, executables, nil)
	testCases := d.Filter.FilterTestCases(discovery.TestCases(reports), d.config.Flags.NameFilter)
	return testCases, reports, nil
}
