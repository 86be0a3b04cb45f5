package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	TestPath    string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string

	// Execution settings
	Processors int

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Discovery settings
	TestDiscoveryRegex     string
	DiscoveryTimeout       time.Duration
	ParseSymbolInformation bool
	UseStreamingDiscovery  bool
	AdditionalPdbs         []string
	PathExtension          string
	TestNameSeparator      string
	TraitsRegexesBefore    []RegexTraitPair
	TraitsRegexesAfter     []RegexTraitPair

	// Run settings
	AdditionalTestExecutionParam string
	RunDisabledTests             bool
	ShuffleTests                 bool
	ShuffleTestsSeed             int
	PrintTestOutput              bool

	// Results history in MySQL; JSON file storage when empty
	ResultsDSN string

	LogLevel string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	Processors       int
	TestPath         string
	NameFilter       string // Test case name pattern
	ExecutableFilter string // Executable file name pattern
	ConfigFile       string
	LogLevel         string
	Streaming        bool
	NoSymbols        bool
	JSON             bool
	FailFast         bool
	OnlyFailed       bool
	OpenFaills       bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:            DefaultProjectPath,
		TestPath:               DefaultTestPath,
		OutputJSONFile:         DefaultOutputJSONFile,
		OutputJSONDir:          DefaultOutputJSONDir,
		Processors:             DefaultProcessors,
		TestDiscoveryRegex:     DefaultTestDiscoveryRegex,
		DiscoveryTimeout:       DefaultDiscoveryTimeout,
		ParseSymbolInformation: true,
		LogLevel:               DefaultLogLevel,
		Flags:                  Flags{Processors: DefaultProcessors},
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load creates a config and applies flags
func Load(flags Flags) *Config {
	cfg := New()
	cfg.ApplyFlags(flags)
	return cfg
}

// ApplyFlags stores the flags and lets them override file and environment settings
func (c *Config) ApplyFlags(flags Flags) {
	c.Flags = flags

	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
	if flags.Streaming {
		c.UseStreamingDiscovery = true
	}
	if flags.NoSymbols {
		c.ParseSymbolInformation = false
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
}

// GetTestPath returns the test path, using flag if provided
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		// If TestPath is provided, make it relative to PROJECT_PATH if it's not absolute
		if filepath.IsAbs(c.Flags.TestPath) {
			return c.Flags.TestPath
		}
		return filepath.Join(c.ProjectPath, c.Flags.TestPath)
	}

	// Default: combine project path and test path
	return filepath.Join(c.ProjectPath, c.TestPath)
}

// GetOutputPath returns the full path to the output JSON file (under project so run and faills use the same file).
// Resolves to an absolute path so run and faills always read/write the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetConfigPath returns the YAML settings file to read
func (c *Config) GetConfigPath() string {
	if c.Flags.ConfigFile != "" {
		return c.Flags.ConfigFile
	}
	return filepath.Join(c.ProjectPath, DefaultConfigFile)
}

// GetPathExtension returns the PATH extension used when launching executable
func (c *Config) GetPathExtension(executable string) string {
	return c.expandPlaceholders(c.PathExtension, executable)
}

// GetAdditionalTestExecutionParams returns the user's extra run parameters for executable
func (c *Config) GetAdditionalTestExecutionParams(executable string) []string {
	expanded := c.expandPlaceholders(c.AdditionalTestExecutionParam, executable)
	return strings.Fields(expanded)
}

// GetAdditionalPdbs returns the additional symbol file patterns for executable
func (c *Config) GetAdditionalPdbs(executable string) []string {
	patterns := make([]string, 0, len(c.AdditionalPdbs))
	for _, p := range c.AdditionalPdbs {
		if p = c.expandPlaceholders(p, executable); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func (c *Config) expandPlaceholders(s, executable string) string {
	if s == "" {
		return ""
	}
	testDir := c.GetTestPath()
	if abs, err := filepath.Abs(testDir); err == nil {
		testDir = abs
	}
	s = strings.ReplaceAll(s, TestDirPlaceholder, testDir)
	s = strings.ReplaceAll(s, ExecutableDirPlaceholder, filepath.Dir(executable))
	return s
}
