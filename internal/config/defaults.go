package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default test path
	DefaultTestPath = "."
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "storage"
	// DefaultProcessors is the default number of processors
	DefaultProcessors = 4
	// DefaultConfigFile is looked up in the project path when no --config is given
	DefaultConfigFile = "gtp.yaml"
	// DefaultTestDiscoveryRegex matches the file names of test executables
	DefaultTestDiscoveryRegex = `(?i)tests?[0-9]*(\.exe)?$`
	// DefaultDiscoveryTimeout bounds a single --gtest_list_tests invocation
	DefaultDiscoveryTimeout = 30 * time.Second
	// DefaultLogLevel is the default diagnostics level
	DefaultLogLevel = "info"
)

// GoogleTest command line options
const (
	ListTestsOption            = "--gtest_list_tests"
	FilterOption               = "--gtest_filter="
	AlsoRunDisabledTestsOption = "--gtest_also_run_disabled_tests"
	ShuffleTestsOption         = "--gtest_shuffle"
	ShuffleTestsSeedOption     = "--gtest_random_seed="
)

// Symbol conventions of test bodies and GTA trait markers
const (
	TestBodySignature = "::TestBody"
	TraitAppendix     = "_GTA_TRAIT"
	TraitSeparator    = "__GTA__"
)

// Console markers printed by GoogleTest while running tests
const (
	RunMarker    = "[ RUN      ]"
	PassedMarker = "[       OK ]"
	FailedMarker = "[  FAILED  ]"

	// CrashText is the message of a test whose output ended before it finished
	CrashText = "!! This is probably the test that crashed !!"
)

// Placeholders expanded in the path extension and additional test parameters
const (
	TestDirPlaceholder       = "$(TestDir)"
	ExecutableDirPlaceholder = "$(ExecutableDir)"
)

// Separators of the compact trait rule syntax: regex///Name,Value//||//regex///Name,Value
const (
	TraitsRegexesPairSeparator  = "//||//"
	TraitsRegexesRegexSeparator = "///"
	TraitsRegexesTraitSeparator = ","
)

// DefaultPathsToIgnore are the default directories to ignore when scanning for test executables
var DefaultPathsToIgnore = []string{
	"CMakeFiles",
	"_deps",
	"third_party",
	"vendor",
	"node_modules",
	"storage",
}
