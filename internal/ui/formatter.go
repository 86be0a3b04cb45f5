package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"gtp/internal/config"
	"gtp/internal/discovery"
	"gtp/internal/domain"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
	gray   = color.New(color.FgHiBlack)
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	out    io.Writer
}

// NewFormatter creates a new Formatter writing to out
func NewFormatter(cfg *config.Config, out io.Writer) *Formatter {
	return &Formatter{
		config: cfg,
		out:    out,
	}
}

// PrintTestCases prints the discovered test cases as a tree grouped by executable
func (f *Formatter) PrintTestCases(testCases []domain.TestCase) {
	groups, executables := groupByExecutable(testCases)
	green.Fprintf(f.out, "Found %d test case(s) in %d executable(s):\n\n", len(testCases), len(executables))

	for i, exe := range executables {
		isLastExe := i == len(executables)-1
		cyan.Fprintf(f.out, "%s%s\n", branch(isLastExe), f.relative(exe))

		cases := groups[exe]
		for j, tc := range cases {
			prefix := indent(isLastExe) + branch(j == len(cases)-1)
			fmt.Fprintf(f.out, "%s%s", prefix, yellow.Sprint(tc.DisplayName))
			if tc.SourceFile != "" {
				fmt.Fprintf(f.out, " %s", gray.Sprintf("%s:%d", tc.SourceFile, tc.Line))
			}
			if len(tc.Traits) > 0 {
				fmt.Fprintf(f.out, " %s", formatTraits(tc.Traits))
			}
			fmt.Fprintln(f.out)
		}
		if !isLastExe {
			fmt.Fprintln(f.out)
		}
	}
}

// PrintJSON writes the test cases as indented JSON
func (f *Formatter) PrintJSON(testCases []domain.TestCase) error {
	if testCases == nil {
		testCases = []domain.TestCase{}
	}
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(testCases); err != nil {
		return fmt.Errorf("failed to encode test cases: %w", err)
	}
	return nil
}

// PrintDiscoveryErrors lists executables whose listing failed
func (f *Formatter) PrintDiscoveryErrors(reports []discovery.Report) {
	for _, r := range reports {
		if r.Err == nil {
			continue
		}
		red.Fprintf(f.out, "✗ %s: %v\n", f.relative(r.Executable), r.Err)
	}
}

// PrintMetaStats displays the statistics and failures of a stored run
func (f *Formatter) PrintMetaStats(output *domain.TestResultsOutput) {
	meta := output.Meta

	fmt.Fprint(f.out, "\n")
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                    Test Execution Statistics                  ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	rows := []struct {
		label string
		value string
		c     *color.Color
	}{
		{"Executables", fmt.Sprint(meta.Executables), white},
		{"Total Test Cases", fmt.Sprint(meta.TotalTestCases), white},
		{"Passed Test Cases", fmt.Sprint(meta.PassedTestCases), green},
		{"Failed Test Cases", fmt.Sprint(meta.FailedTestCases), red},
		{"Crashed Test Cases", fmt.Sprint(meta.CrashedTestCases), red},
		{"Not Found Test Cases", fmt.Sprint(meta.NotFoundTestCases), yellow},
		{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds), white},
		{"Workers", fmt.Sprint(meta.Workers), white},
		{"Timestamp", meta.Timestamp, white},
	}

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	for i, row := range rows {
		fmt.Fprintf(f.out, "│ %-31s │ ", row.label)
		row.c.Fprintf(f.out, "%-27s", row.value)
		fmt.Fprintln(f.out, " │")
		if i < len(rows)-1 {
			fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
		}
	}
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	fmt.Fprintln(f.out)
	if len(output.Details) == 0 {
		green.Fprintln(f.out, "✓ All tests passed!")
		return
	}
	red.Fprintf(f.out, "✗ %d test case(s) did not pass\n\n", len(output.Details))
	f.printFailuresTree(output.Details)
}

// printFailuresTree prints the failures grouped by executable
func (f *Formatter) printFailuresTree(failures []domain.TestFailure) {
	groups := make(map[string][]domain.TestFailure)
	var executables []string
	for _, failure := range failures {
		if _, ok := groups[failure.Executable]; !ok {
			executables = append(executables, failure.Executable)
		}
		groups[failure.Executable] = append(groups[failure.Executable], failure)
	}
	sort.Strings(executables)

	for i, exe := range executables {
		isLastExe := i == len(executables)-1
		yellow.Fprintf(f.out, "%s%s\n", branch(isLastExe), f.relative(exe))

		cases := groups[exe]
		for j, failure := range cases {
			prefix := indent(isLastExe) + branch(j == len(cases)-1)
			fmt.Fprintf(f.out, "%s%s %s\n", prefix, red.Sprint(failure.TestName), gray.Sprintf("(%s)", failureKind(failure)))
		}
	}
}

func (f *Formatter) relative(path string) string {
	if f.config == nil || f.config.ProjectPath == "" {
		return path
	}
	rel, err := filepath.Rel(f.config.ProjectPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func groupByExecutable(testCases []domain.TestCase) (map[string][]domain.TestCase, []string) {
	groups := make(map[string][]domain.TestCase)
	var executables []string
	for _, tc := range testCases {
		if _, ok := groups[tc.Executable]; !ok {
			executables = append(executables, tc.Executable)
		}
		groups[tc.Executable] = append(groups[tc.Executable], tc)
	}
	return groups, executables
}

func formatTraits(traits []domain.Trait) string {
	parts := make([]string, len(traits))
	for i, t := range traits {
		parts[i] = t.Name + "=" + t.Value
	}
	return cyan.Sprintf("[%s]", strings.Join(parts, ", "))
}

func failureKind(failure domain.TestFailure) string {
	if failure.Crashed {
		return "crashed"
	}
	return failure.Outcome
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}
