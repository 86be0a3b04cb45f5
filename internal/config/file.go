package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileSettings mirrors gtp.yaml; pointers distinguish "unset" from zero values
type fileSettings struct {
	TestPath                     *string     `yaml:"test_path"`
	Processors                   *int        `yaml:"processors"`
	PathsToIgnore                []string    `yaml:"paths_to_ignore"`
	TestDiscoveryRegex           *string     `yaml:"test_discovery_regex"`
	DiscoveryTimeoutSeconds      *int        `yaml:"discovery_timeout_seconds"`
	ParseSymbolInformation       *bool       `yaml:"parse_symbol_information"`
	UseStreamingDiscovery        *bool       `yaml:"use_streaming_discovery"`
	AdditionalPdbs               []string    `yaml:"additional_pdbs"`
	PathExtension                *string     `yaml:"path_extension"`
	TestNameSeparator            *string     `yaml:"test_name_separator"`
	TraitsBefore                 []traitRule `yaml:"traits_before"`
	TraitsAfter                  []traitRule `yaml:"traits_after"`
	AdditionalTestExecutionParam *string     `yaml:"additional_test_execution_param"`
	RunDisabledTests             *bool       `yaml:"run_disabled_tests"`
	ShuffleTests                 *bool       `yaml:"shuffle_tests"`
	ShuffleTestsSeed             *int        `yaml:"shuffle_tests_seed"`
	PrintTestOutput              *bool       `yaml:"print_test_output"`
	ResultsDSN                   *string     `yaml:"results_dsn"`
	LogLevel                     *string     `yaml:"log_level"`
}

type traitRule struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// LoadFile applies the YAML settings file at path. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read settings %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert settings %s: %w", path, err)
	}
	if err := ValidateSettings(raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}
	return c.apply(fs)
}

func (c *Config) apply(fs fileSettings) error {
	setString(&c.TestPath, fs.TestPath)
	setString(&c.TestDiscoveryRegex, fs.TestDiscoveryRegex)
	setString(&c.PathExtension, fs.PathExtension)
	setString(&c.TestNameSeparator, fs.TestNameSeparator)
	setString(&c.AdditionalTestExecutionParam, fs.AdditionalTestExecutionParam)
	setString(&c.ResultsDSN, fs.ResultsDSN)
	setString(&c.LogLevel, fs.LogLevel)
	setBool(&c.ParseSymbolInformation, fs.ParseSymbolInformation)
	setBool(&c.UseStreamingDiscovery, fs.UseStreamingDiscovery)
	setBool(&c.RunDisabledTests, fs.RunDisabledTests)
	setBool(&c.ShuffleTests, fs.ShuffleTests)
	setBool(&c.PrintTestOutput, fs.PrintTestOutput)
	if fs.Processors != nil {
		c.Processors = *fs.Processors
	}
	if fs.ShuffleTestsSeed != nil {
		c.ShuffleTestsSeed = *fs.ShuffleTestsSeed
	}
	if fs.DiscoveryTimeoutSeconds != nil {
		c.DiscoveryTimeout = time.Duration(*fs.DiscoveryTimeoutSeconds) * time.Second
	}
	if fs.PathsToIgnore != nil {
		c.PathsToIgnore = fs.PathsToIgnore
	}
	if fs.AdditionalPdbs != nil {
		c.AdditionalPdbs = fs.AdditionalPdbs
	}

	before, err := compileRules(fs.TraitsBefore)
	if err != nil {
		return fmt.Errorf("traits_before: %w", err)
	}
	after, err := compileRules(fs.TraitsAfter)
	if err != nil {
		return fmt.Errorf("traits_after: %w", err)
	}
	c.TraitsRegexesBefore = append(c.TraitsRegexesBefore, before...)
	c.TraitsRegexesAfter = append(c.TraitsRegexesAfter, after...)
	return nil
}

func compileRules(rules []traitRule) ([]RegexTraitPair, error) {
	pairs := make([]RegexTraitPair, 0, len(rules))
	for _, r := range rules {
		pair, err := NewRegexTraitPair(r.Regex, r.Name, r.Value)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// LoadEnv loads the project's .env file and applies GTP_* overrides
func (c *Config) LoadEnv() error {
	// .env file might not exist, that's okay - use environment variables
	_ = godotenv.Load(filepath.Join(c.ProjectPath, ".env"))

	if v := os.Getenv("GTP_PROCESSORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("GTP_PROCESSORS: expected a positive number, got %q", v)
		}
		c.Processors = n
	}
	if v := os.Getenv("GTP_PARSE_SYMBOLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GTP_PARSE_SYMBOLS: %w", err)
		}
		c.ParseSymbolInformation = b
	}
	if v := os.Getenv("GTP_STREAMING_DISCOVERY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GTP_STREAMING_DISCOVERY: %w", err)
		}
		c.UseStreamingDiscovery = b
	}
	if v := os.Getenv("GTP_ADDITIONAL_PDBS"); v != "" {
		c.AdditionalPdbs = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("GTP_TRAITS_BEFORE"); v != "" {
		pairs, err := ParseTraitRegexes(v)
		if err != nil {
			return fmt.Errorf("GTP_TRAITS_BEFORE: %w", err)
		}
		c.TraitsRegexesBefore = append(c.TraitsRegexesBefore, pairs...)
	}
	if v := os.Getenv("GTP_TRAITS_AFTER"); v != "" {
		pairs, err := ParseTraitRegexes(v)
		if err != nil {
			return fmt.Errorf("GTP_TRAITS_AFTER: %w", err)
		}
		c.TraitsRegexesAfter = append(c.TraitsRegexesAfter, pairs...)
	}
	if v := os.Getenv("GTP_PATH_EXTENSION"); v != "" {
		c.PathExtension = v
	}
	if v := os.Getenv("GTP_RESULTS_DSN"); v != "" {
		c.ResultsDSN = v
	}
	if v := os.Getenv("GTP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
