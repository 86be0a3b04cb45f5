package discovery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtp/internal/config"
	"gtp/internal/domain"
	"gtp/internal/logging"
	"gtp/internal/symbols"
)

type fakeRunner struct {
	lines    []string
	exitCode int
	err      error

	gotArgs []string
	gotDir  string
}

func (r *fakeRunner) RunBlocking(_ context.Context, _ string, args []string, dir, _ string) (int, []string, error) {
	r.gotArgs, r.gotDir = args, dir
	if r.err != nil {
		return 0, nil, r.err
	}
	return r.exitCode, r.lines, nil
}

func (r *fakeRunner) RunStreaming(_ context.Context, _ string, args []string, dir, _ string, onLine func(string)) (int, error) {
	r.gotArgs, r.gotDir = args, dir
	if r.err != nil {
		return 0, r.err
	}
	for _, l := range r.lines {
		onLine(l)
	}
	return r.exitCode, nil
}

type fakeResolver struct {
	locations symbols.Locations
	fallback  symbols.Locations
	calls     int
	gotSigs   []symbols.Signatures
	gotFilter string

	fallbackCalls int
}

func (r *fakeResolver) Resolve(_ string, sigs symbols.Signatures, filter string, _ []string, _ string) symbols.Locations {
	r.calls++
	r.gotSigs = append(r.gotSigs, sigs)
	r.gotFilter = filter
	return filterLocations(r.locations, sigs)
}

func (r *fakeResolver) ResolveBinary(binary string, sigs symbols.Signatures, filter, _ string) symbols.BinaryResult {
	r.calls++
	r.gotSigs = append(r.gotSigs, sigs)
	r.gotFilter = filter
	return symbols.BinaryResult{Binary: binary, Locations: filterLocations(r.locations, sigs)}
}

func (r *fakeResolver) ResolveFallbacks(_ string, sigs symbols.Signatures, _ string, _ []string, _ string) symbols.Locations {
	r.fallbackCalls++
	return filterLocations(r.fallback, sigs)
}

func filterLocations(locations symbols.Locations, sigs symbols.Signatures) symbols.Locations {
	out := symbols.Locations{}
	for k, v := range locations {
		if sigs.Contains(k) {
			out[k] = v
		}
	}
	return out
}

func captureLogs(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	logger, err := logging.NewWithWriter(&logs, "debug")
	require.NoError(t, err)
	return logger, &logs
}

var listing = []string{
	"Math.",
	"  Adds",
	"  Subtracts [Category=Fast]",
	"Ints/RangeTest.",
	"  InRange/0  # GetParam() = 1",
}

func newTestConfig(streaming, symbolsOn bool) *config.Config {
	cfg := config.New()
	cfg.UseStreamingDiscovery = streaming
	cfg.ParseSymbolInformation = symbolsOn
	cfg.DiscoveryTimeout = time.Second
	return cfg
}

func TestFactory_SymbolsDisabled(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		cfg := newTestConfig(streaming, false)
		before, err := config.NewRegexTraitPair("Math", "Suite", "Math")
		require.NoError(t, err)
		cfg.TraitsRegexesBefore = []config.RegexTraitPair{before}

		runner := &fakeRunner{lines: listing}
		resolver := &fakeResolver{}
		report := NewFactory(cfg, runner, resolver, logging.Discard()).
			CreateTestCases(context.Background(), "/build/unit_tests", nil)

		require.NoError(t, report.Err)
		assert.Equal(t, StateDone, report.State())
		assert.Contains(t, report.Trace, StateLocationsSkipped)
		assert.Zero(t, resolver.calls)
		assert.Equal(t, []string{config.ListTestsOption}, runner.gotArgs)
		assert.Equal(t, "/build", runner.gotDir)

		require.Len(t, report.TestCases, 3)
		assert.Equal(t, domain.TestCase{
			FullyQualifiedName: "Math.Subtracts",
			Executable:         "/build/unit_tests",
			DisplayName:        "Math.Subtracts",
			Traits: []domain.Trait{
				{Name: "Suite", Value: "Math"},
				{Name: "Category", Value: "Fast"},
			},
		}, report.TestCases[1])
		assert.Empty(t, report.TestCases[2].SourceFile)
		assert.Zero(t, report.TestCases[2].Line)
	}
}

func TestFactory_BatchResolvesAllSignaturesOnce(t *testing.T) {
	cfg := newTestConfig(false, true)
	resolver := &fakeResolver{locations: symbols.Locations{
		"Math_Adds_Test::TestBody": {
			Symbol:     "calc::Math_Adds_Test::TestBody",
			SourceFile: "math_test.cc",
			Line:       10,
			Traits:     []domain.Trait{{Name: "Owner", Value: "core"}},
		},
		"RangeTest_InRange_Test::TestBody": {SourceFile: "range_test.cc", Line: 4},
	}}

	report := NewFactory(cfg, &fakeRunner{lines: listing}, resolver, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)

	assert.Equal(t, []State{
		StateNotStarted, StateListingRunning, StateListingParsed, StateLocationsResolved, StateDone,
	}, report.Trace)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, "*::TestBody", resolver.gotFilter)
	assert.Equal(t, symbols.NewSignatures(
		"Math_Adds_Test::TestBody",
		"Math_Subtracts_Test::TestBody",
		"RangeTest_InRange_Test::TestBody",
	), resolver.gotSigs[0])

	require.Len(t, report.TestCases, 3)

	adds := report.TestCases[0]
	assert.Equal(t, "math_test.cc", adds.SourceFile)
	assert.Equal(t, 10, adds.Line)
	assert.Equal(t, []domain.Trait{{Name: "Owner", Value: "core"}}, adds.Traits)

	// no location, so no intrinsic traits either
	subtracts := report.TestCases[1]
	assert.Empty(t, subtracts.SourceFile)
	assert.Zero(t, subtracts.Line)
	assert.Equal(t, []domain.Trait{}, subtracts.Traits)

	assert.Equal(t, "range_test.cc", report.TestCases[2].SourceFile)
}

func TestFactory_StreamingReportsAsParsed(t *testing.T) {
	cfg := newTestConfig(true, true)
	resolver := &fakeResolver{locations: symbols.Locations{
		"Math_Adds_Test::TestBody":      {SourceFile: "math_test.cc", Line: 10},
		"Math_Subtracts_Test::TestBody": {SourceFile: "math_test.cc", Line: 20},
	}}

	var reported []string
	report := NewFactory(cfg, &fakeRunner{lines: listing}, resolver, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", func(tc domain.TestCase) {
			reported = append(reported, tc.FullyQualifiedName)
		})

	require.NoError(t, report.Err)
	assert.Equal(t, StateDone, report.State())
	assert.Equal(t, []string{"Math.Adds", "Math.Subtracts", "Ints/RangeTest.InRange/0"}, reported)

	// index built once, accepting every signature
	assert.Equal(t, 1, resolver.calls)
	assert.Nil(t, resolver.gotSigs[0])
	// Math.Adds was found in the binary itself
	assert.Zero(t, resolver.fallbackCalls)

	require.Len(t, report.TestCases, 3)
	assert.Equal(t, 20, report.TestCases[1].Line)
	assert.Equal(t, []domain.Trait{{Name: "Category", Value: "Fast"}}, report.TestCases[1].Traits)
	assert.Empty(t, report.TestCases[2].SourceFile)
}

func TestFactory_StreamingMatchesBatch(t *testing.T) {
	locations := symbols.Locations{
		"Math_Adds_Test::TestBody":         {SourceFile: "math_test.cc", Line: 10},
		"RangeTest_InRange_Test::TestBody": {SourceFile: "range_test.cc", Line: 4},
	}

	batch := NewFactory(newTestConfig(false, true), &fakeRunner{lines: listing}, &fakeResolver{locations: locations}, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)
	streamed := NewFactory(newTestConfig(true, true), &fakeRunner{lines: listing}, &fakeResolver{locations: locations}, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)

	assert.Equal(t, batch.TestCases, streamed.TestCases)
}

func TestFactory_ListingFailures(t *testing.T) {
	tests := map[string]*fakeRunner{
		"non zero exit":    {lines: listing, exitCode: 1},
		"no output":        {exitCode: 3},
		"launch error":     {err: errors.New("exec format error")},
		"exit after lines": {lines: []string{"Math.", "  Adds"}, exitCode: -1},
	}

	for name, runner := range tests {
		for _, streaming := range []bool{false, true} {
			t.Run(name, func(t *testing.T) {
				resolver := &fakeResolver{}
				report := NewFactory(newTestConfig(streaming, false), runner, resolver, logging.Discard()).
					CreateTestCases(context.Background(), "/build/unit_tests", nil)

				assert.Error(t, report.Err)
				assert.Empty(t, report.TestCases)
				assert.Equal(t, StateListingFailed, report.State())
				assert.NotContains(t, report.Trace, StateListingParsed)
			})
		}
	}
}

func TestFactory_EmptyListing(t *testing.T) {
	report := NewFactory(newTestConfig(false, true), &fakeRunner{}, &fakeResolver{}, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)

	require.NoError(t, report.Err)
	assert.Empty(t, report.TestCases)
	assert.Equal(t, StateDone, report.State())
}

func TestFactory_NilResolverSkipsSymbols(t *testing.T) {
	report := NewFactory(newTestConfig(false, true), &fakeRunner{lines: listing}, nil, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)

	assert.Contains(t, report.Trace, StateLocationsSkipped)
	assert.Len(t, report.TestCases, 3)
}

func TestWithInlineTraits(t *testing.T) {
	symbolTraits := []domain.Trait{{Name: "Category", Value: "Slow"}}
	inline := []domain.Trait{{Name: "Category", Value: "Fast"}, {Name: "Owner", Value: "core"}}

	assert.Equal(t, []domain.Trait{
		{Name: "Category", Value: "Slow"},
		{Name: "Owner", Value: "core"},
	}, withInlineTraits(symbolTraits, inline))
	assert.Equal(t, symbolTraits, withInlineTraits(symbolTraits, nil))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "listing failed", StateListingFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}

type storeLocator map[string]string

func (l storeLocator) Locate(binary, _ string) (string, bool) {
	store, ok := l[binary]
	return store, ok
}

type storeProvider map[string][]symbols.SourceLocation

func (p storeProvider) Open(_, store string) (symbols.Handle, error) {
	return storeHandle(p[store]), nil
}

type storeHandle []symbols.SourceLocation

func (h storeHandle) FindFunctions(glob string) ([]symbols.SourceLocation, error) {
	var out []symbols.SourceLocation
	for _, s := range h {
		if ok, _ := doublestar.Match(glob, s.Symbol); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (h storeHandle) Close() error { return nil }

type importTable map[string][]string

func (i importTable) ReadImports(binary string) ([]string, error) {
	return i[binary], nil
}

// newLinkedResolver resolves app, whose own symbols only hold gtest's
// internal test body, against libtests.so imported beside it
func newLinkedResolver(t *testing.T) (*symbols.Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	app := filepath.Join(dir, "app_tests")
	lib := filepath.Join(dir, "libtests.so")
	for _, path := range []string{app, lib} {
		require.NoError(t, os.WriteFile(path, nil, 0o755))
	}

	provider := storeProvider{
		"app.debug": {{Symbol: "testing::internal::FailureTest::TestBody", File: "gtest.cc", Line: 500}},
		"lib.debug": {{Symbol: "Math_Adds_Test::TestBody", File: "math_test.cc", Line: 10}},
	}
	resolver := symbols.NewResolver(storeLocator{app: "app.debug", lib: "lib.debug"}, provider,
		importTable{app: {"libtests.so"}}, logging.Discard())
	return resolver, app
}

func TestFactory_StreamingUsesFallbacksLikeBatch(t *testing.T) {
	for _, streaming := range []bool{false, true} {
		resolver, app := newLinkedResolver(t)
		runner := &fakeRunner{lines: []string{"Math.", "  Adds"}}

		report := NewFactory(newTestConfig(streaming, true), runner, resolver, logging.Discard()).
			CreateTestCases(context.Background(), app, nil)

		require.NoError(t, report.Err)
		require.Len(t, report.TestCases, 1, "streaming=%v", streaming)
		assert.Equal(t, "math_test.cc", report.TestCases[0].SourceFile, "streaming=%v", streaming)
		assert.Equal(t, 10, report.TestCases[0].Line, "streaming=%v", streaming)
	}
}

func TestFactory_StreamingFallbackRunsOnce(t *testing.T) {
	resolver := &fakeResolver{fallback: symbols.Locations{
		"Math_Adds_Test::TestBody":      {SourceFile: "math_test.cc", Line: 10},
		"Math_Subtracts_Test::TestBody": {SourceFile: "math_test.cc", Line: 20},
	}}

	report := NewFactory(newTestConfig(true, true), &fakeRunner{lines: listing}, resolver, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)

	require.Len(t, report.TestCases, 3)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, resolver.fallbackCalls)
	assert.Equal(t, 10, report.TestCases[0].Line)
	assert.Equal(t, 20, report.TestCases[1].Line)
	assert.Empty(t, report.TestCases[2].SourceFile)
}

func TestFactory_StreamingReportsBeforeExitCode(t *testing.T) {
	var reported []string
	runner := &fakeRunner{lines: []string{"Math.", "  Adds", "  Subtracts"}, exitCode: 1}

	report := NewFactory(newTestConfig(true, false), runner, nil, logging.Discard()).
		CreateTestCases(context.Background(), "/build/unit_tests", func(tc domain.TestCase) {
			reported = append(reported, tc.FullyQualifiedName)
		})

	assert.Equal(t, []string{"Math.Adds", "Math.Subtracts"}, reported)
	assert.Error(t, report.Err)
	assert.Empty(t, report.TestCases)
	assert.Equal(t, StateListingFailed, report.State())
}

func TestFactory_ListingFailureIsLogged(t *testing.T) {
	tests := map[string]struct {
		runner *fakeRunner
		want   []string
	}{
		"with output": {
			runner: &fakeRunner{lines: []string{"unknown flag --gtest_list_tests"}, exitCode: 2},
			want:   []string{"could not list test cases", "/build/unit_tests --gtest_list_tests", "/build", "unknown flag"},
		},
		"without output": {
			runner: &fakeRunner{lines: []string{""}, exitCode: 3},
			want:   []string{"could not list test cases", "/build/unit_tests --gtest_list_tests", "Command produced no output"},
		},
		"launch error": {
			runner: &fakeRunner{err: errors.New("exec format error")},
			want:   []string{"failed to run test listing", "/build/unit_tests --gtest_list_tests", "exec format error"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			logger, logs := captureLogs(t)

			report := NewFactory(newTestConfig(false, false), tt.runner, nil, logger).
				CreateTestCases(context.Background(), "/build/unit_tests", nil)

			require.Error(t, report.Err)
			for _, want := range tt.want {
				assert.Contains(t, logs.String(), want)
			}
		})
	}
}

func TestFactory_MissingLocationIsLogged(t *testing.T) {
	logger, logs := captureLogs(t)
	resolver := &fakeResolver{locations: symbols.Locations{
		"Math_Adds_Test::TestBody": {SourceFile: "math_test.cc", Line: 10},
	}}

	NewFactory(newTestConfig(false, true), &fakeRunner{lines: listing}, resolver, logger).
		CreateTestCases(context.Background(), "/build/unit_tests", nil)

	assert.Contains(t, logs.String(), "could not find source location for test")
	assert.Contains(t, logs.String(), "Math.Subtracts")
	assert.NotContains(t, logs.String(), "Math.Adds")
}
