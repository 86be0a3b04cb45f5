package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"gtp/internal/config"
	"gtp/internal/domain"
	"gtp/internal/signature"
	"gtp/internal/symbols"
)

// ProcessRunner launches the listing command of a test executable
type ProcessRunner interface {
	RunBlocking(ctx context.Context, executable string, args []string, dir, pathExt string) (int, []string, error)
	RunStreaming(ctx context.Context, executable string, args []string, dir, pathExt string, onLine func(string)) (int, error)
}

// SymbolResolver maps test body signatures of a binary to source locations
type SymbolResolver interface {
	Resolve(binary string, sigs symbols.Signatures, symbolFilter string, auxPatterns []string, pathExt string) symbols.Locations
	ResolveBinary(binary string, sigs symbols.Signatures, symbolFilter, pathExt string) symbols.BinaryResult
	ResolveFallbacks(binary string, sigs symbols.Signatures, symbolFilter string, auxPatterns []string, pathExt string) symbols.Locations
}

const testBodyFilter = "*" + config.TestBodySignature

// State is a step of discovering one executable
type State int

const (
	StateNotStarted State = iota
	StateListingRunning
	StateListingFailed
	StateListingParsed
	StateLocationsResolved
	StateLocationsSkipped
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateListingRunning:
		return "listing running"
	case StateListingFailed:
		return "listing failed"
	case StateListingParsed:
		return "listing parsed"
	case StateLocationsResolved:
		return "locations resolved"
	case StateLocationsSkipped:
		return "locations skipped"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Report is the outcome of discovering one executable
type Report struct {
	Executable string
	TestCases  []domain.TestCase
	// Trace lists every state passed through, the last one is the final state
	Trace []State
	Err   error
}

// State returns the final state
func (r *Report) State() State {
	if len(r.Trace) == 0 {
		return StateNotStarted
	}
	return r.Trace[len(r.Trace)-1]
}

func (r *Report) enter(s State) {
	r.Trace = append(r.Trace, s)
}

// Factory creates the test cases of a single executable
type Factory struct {
	config     *config.Config
	runner     ProcessRunner
	resolver   SymbolResolver
	signatures *signature.Creator
	traits     *TraitMerger
	logger     *slog.Logger
}

// NewFactory creates a new Factory. resolver may be nil when symbol parsing is disabled.
func NewFactory(cfg *config.Config, runner ProcessRunner, resolver SymbolResolver, logger *slog.Logger) *Factory {
	return &Factory{
		config:     cfg,
		runner:     runner,
		resolver:   resolver,
		signatures: signature.NewCreator(),
		traits:     NewTraitMerger(cfg.TraitsRegexesBefore, cfg.TraitsRegexesAfter),
		logger:     logger,
	}
}

// CreateTestCases lists the tests of executable and resolves their locations.
// onTestCase, if set, is called for every test case as soon as it exists.
// Failures are logged and leave the report without test cases. In streaming
// mode onTestCase runs while the listing is read, so a listing that prints
// tests and then exits non-zero has already reported them although the
// report ends in StateListingFailed.
func (f *Factory) CreateTestCases(ctx context.Context, executable string, onTestCase func(domain.TestCase)) Report {
	report := Report{Executable: executable}
	report.enter(StateNotStarted)

	if f.config.DiscoveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.DiscoveryTimeout)
		defer cancel()
	}

	report.enter(StateListingRunning)
	var testCases []domain.TestCase
	var err error
	if f.config.UseStreamingDiscovery {
		testCases, err = f.streaming(ctx, executable, &report, onTestCase)
	} else {
		testCases, err = f.batch(ctx, executable, &report, onTestCase)
	}
	if err != nil {
		report.Err = err
		report.enter(StateListingFailed)
		return report
	}

	report.TestCases = testCases
	report.enter(StateDone)
	return report
}

func (f *Factory) batch(ctx context.Context, executable string, report *Report, onTestCase func(domain.TestCase)) ([]domain.TestCase, error) {
	pathExt := f.config.GetPathExtension(executable)
	exitCode, lines, err := f.runner.RunBlocking(ctx, executable, f.listArgs(), filepath.Dir(executable), pathExt)
	if err != nil {
		return nil, f.executionError(executable, err)
	}
	if err := f.checkExitCode(executable, exitCode, lines); err != nil {
		return nil, err
	}

	descriptors := NewListParser(f.config.TestNameSeparator).Parse(lines)
	report.enter(StateListingParsed)

	testCases := make([]domain.TestCase, 0, len(descriptors))
	if !f.parseSymbols() {
		report.enter(StateLocationsSkipped)
		for _, d := range descriptors {
			testCases = append(testCases, f.report(f.unresolved(executable, d), onTestCase))
		}
		return testCases, nil
	}

	sigs := make(symbols.Signatures)
	for _, d := range descriptors {
		for _, s := range f.signatures.NormalizedSignatures(d) {
			sigs[s] = struct{}{}
		}
	}
	locations := f.resolve(executable, sigs, pathExt)
	report.enter(StateLocationsResolved)

	for _, d := range descriptors {
		testCases = append(testCases, f.report(f.located(executable, d, locations), onTestCase))
	}
	return testCases, nil
}

func (f *Factory) streaming(ctx context.Context, executable string, report *Report, onTestCase func(domain.TestCase)) ([]domain.TestCase, error) {
	pathExt := f.config.GetPathExtension(executable)

	var (
		output    []string
		testCases []domain.TestCase
	)
	index := &streamingIndex{factory: f, executable: executable, pathExt: pathExt}
	parser := NewStreamingParser(f.config.TestNameSeparator, func(d domain.TestCaseDescriptor) {
		if !f.parseSymbols() {
			testCases = append(testCases, f.report(f.unresolved(executable, d), onTestCase))
			return
		}
		testCases = append(testCases, f.report(f.located(executable, d, index.locationsFor(d)), onTestCase))
	})

	exitCode, err := f.runner.RunStreaming(ctx, executable, f.listArgs(), filepath.Dir(executable), pathExt, func(line string) {
		output = append(output, line)
		parser.ReportLine(line)
	})
	if err != nil {
		return nil, f.executionError(executable, err)
	}
	if err := f.checkExitCode(executable, exitCode, output); err != nil {
		return nil, err
	}

	report.enter(StateListingParsed)
	if f.parseSymbols() {
		report.enter(StateLocationsResolved)
	} else {
		report.enter(StateLocationsSkipped)
	}
	return testCases, nil
}

// streamingIndex resolves locations while descriptors arrive. Signatures are
// not known upfront, so the primary binary is indexed once for every test
// body. The fallbacks run once, when a test misses the primary index before
// any test was found there, and are merged into the index.
type streamingIndex struct {
	factory    *Factory
	executable string
	pathExt    string
	locations  symbols.Locations
	primaryHit bool
	fellBack   bool
}

func (ix *streamingIndex) locationsFor(d domain.TestCaseDescriptor) symbols.Locations {
	f := ix.factory
	if ix.locations == nil {
		ix.locations = f.resolver.ResolveBinary(ix.executable, nil, testBodyFilter, ix.pathExt).Locations
		if ix.locations == nil {
			ix.locations = symbols.Locations{}
		}
	}
	if ix.primaryHit || ix.fellBack {
		return ix.locations
	}

	for _, sig := range f.signatures.NormalizedSignatures(d) {
		if _, ok := ix.locations[sig]; ok {
			ix.primaryHit = true
			return ix.locations
		}
	}

	ix.fellBack = true
	symbols.Merge(ix.locations, f.resolver.ResolveFallbacks(ix.executable, nil, testBodyFilter,
		f.config.GetAdditionalPdbs(ix.executable), ix.pathExt))
	return ix.locations
}

func (f *Factory) parseSymbols() bool {
	return f.config.ParseSymbolInformation && f.resolver != nil
}

func (f *Factory) listArgs() []string {
	return []string{config.ListTestsOption}
}

func (f *Factory) resolve(executable string, sigs symbols.Signatures, pathExt string) symbols.Locations {
	locations := f.resolver.Resolve(executable, sigs, testBodyFilter, f.config.GetAdditionalPdbs(executable), pathExt)
	if locations == nil {
		locations = symbols.Locations{}
	}
	return locations
}

func (f *Factory) report(tc domain.TestCase, onTestCase func(domain.TestCase)) domain.TestCase {
	if onTestCase != nil {
		onTestCase(tc)
	}
	return tc
}

func (f *Factory) unresolved(executable string, d domain.TestCaseDescriptor) domain.TestCase {
	return domain.TestCase{
		FullyQualifiedName: d.FullyQualifiedName,
		Executable:         executable,
		DisplayName:        d.DisplayName,
		Traits:             f.traits.Merge(d.DisplayName, d.Traits),
	}
}

func (f *Factory) located(executable string, d domain.TestCaseDescriptor, locations symbols.Locations) domain.TestCase {
	for _, sig := range f.signatures.NormalizedSignatures(d) {
		location, ok := locations[sig]
		if !ok {
			continue
		}
		return domain.TestCase{
			FullyQualifiedName: d.FullyQualifiedName,
			Executable:         executable,
			DisplayName:        d.DisplayName,
			SourceFile:         location.SourceFile,
			Line:               location.Line,
			Traits:             f.traits.Merge(d.DisplayName, withInlineTraits(location.Traits, d.Traits)),
		}
	}

	f.logger.Warn("could not find source location for test",
		"test", d.FullyQualifiedName, "executable", executable)
	return domain.TestCase{
		FullyQualifiedName: d.FullyQualifiedName,
		Executable:         executable,
		DisplayName:        d.DisplayName,
		Traits:             f.traits.Merge(d.DisplayName, nil),
	}
}

// withInlineTraits appends listing traits whose name the symbol traits do not carry
func withInlineTraits(symbolTraits, inline []domain.Trait) []domain.Trait {
	if len(inline) == 0 {
		return symbolTraits
	}
	names := make(map[string]bool, len(symbolTraits))
	for _, t := range symbolTraits {
		names[t.Name] = true
	}
	merged := append([]domain.Trait(nil), symbolTraits...)
	for _, t := range inline {
		if !names[t.Name] {
			merged = append(merged, t)
		}
	}
	return merged
}

func (f *Factory) commandLine(executable string) string {
	return executable + " " + strings.Join(f.listArgs(), " ")
}

func (f *Factory) executionError(executable string, err error) error {
	f.logger.Error("failed to run test listing",
		"executable", executable,
		"command", f.commandLine(executable),
		"working_directory", filepath.Dir(executable),
		"error", err)
	return fmt.Errorf("list tests of %s: %w", executable, err)
}

func (f *Factory) checkExitCode(executable string, exitCode int, output []string) error {
	if exitCode == 0 {
		return nil
	}

	attrs := []any{
		"executable", executable,
		"exit_code", exitCode,
		"command", f.commandLine(executable),
		"working_directory", filepath.Dir(executable),
	}
	if hasOutput(output) {
		attrs = append(attrs, "output", strings.Join(output, "\n"))
	} else {
		attrs = append(attrs, "output", "Command produced no output")
	}
	f.logger.Error("could not list test cases of executable", attrs...)
	return fmt.Errorf("list tests of %s: exit code %d", executable, exitCode)
}

func hasOutput(lines []string) bool {
	for _, l := range lines {
		if l != "" {
			return true
		}
	}
	return false
}
