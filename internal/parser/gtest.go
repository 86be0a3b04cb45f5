package parser

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gtp/internal/config"
	"gtp/internal/domain"
)

const minDuration = time.Millisecond

// GTestParser parses GoogleTest console output
type GTestParser struct {
	logger *slog.Logger
}

// NewGTestParser creates a new GTestParser
func NewGTestParser(logger *slog.Logger) *GTestParser {
	return &GTestParser{logger: logger}
}

// Parse returns one result for every "[ RUN      ]" line naming one of testCases.
// A test whose output ends, or is followed by another run line, before its
// pass or fail marker is reported as crashed.
func (p *GTestParser) Parse(testCases []domain.TestCase, output []string) Results {
	var results Results

	for i := nextRunLine(output, 0); i >= 0; i = nextRunLine(output, i+1) {
		name := strings.TrimSpace(strings.TrimPrefix(output[i], config.RunMarker))
		tc, ok := findTestCase(testCases, name)
		if !ok {
			p.logger.Warn("output names unknown test", "test", name)
			continue
		}

		result := p.result(tc, output[i+1:])
		if result.Crashed {
			crashed := tc
			results.CrashedTestCase = &crashed
		}
		results.TestResults = append(results.TestResults, result)
	}

	return results
}

// result interprets the lines following the run line of tc
func (p *GTestParser) result(tc domain.TestCase, rest []string) domain.TestResult {
	var buffer strings.Builder
	for _, line := range rest {
		switch {
		case strings.HasPrefix(line, config.PassedMarker):
			return domain.TestResult{
				TestCase: tc,
				Outcome:  domain.OutcomePassed,
				Duration: p.parseDuration(line),
			}
		case strings.HasPrefix(line, config.FailedMarker):
			return domain.TestResult{
				TestCase:     tc,
				Outcome:      domain.OutcomeFailed,
				Duration:     p.parseDuration(line),
				ErrorMessage: buffer.String(),
			}
		case strings.HasPrefix(line, config.RunMarker):
			return crashed(tc, buffer.String())
		}
		buffer.WriteString(line)
		buffer.WriteString("\n")
	}
	return crashed(tc, buffer.String())
}

func crashed(tc domain.TestCase, output string) domain.TestResult {
	message := config.CrashText
	if output != "" {
		message += "\n\n" + output
	}
	return domain.TestResult{
		TestCase:     tc,
		Outcome:      domain.OutcomeFailed,
		ErrorMessage: message,
		Crashed:      true,
	}
}

// parseDuration reads the trailing "(N ms)" of a marker line
func (p *GTestParser) parseDuration(line string) time.Duration {
	ms, ok := durationMs(line)
	if !ok {
		p.logger.Warn("could not parse duration", "line", line)
		return minDuration
	}
	return max(time.Duration(ms)*time.Millisecond, minDuration)
}

func durationMs(line string) (int, bool) {
	line = strings.TrimRight(line, " \r")
	open := strings.LastIndex(line, "(")
	if open < 0 || !strings.HasSuffix(line, ")") || open+1 > len(line)-1 {
		return 0, false
	}
	part := strings.TrimSpace(strings.Replace(line[open+1:len(line)-1], "ms", "", 1))
	ms, err := strconv.Atoi(part)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func nextRunLine(output []string, from int) int {
	for i := from; i < len(output); i++ {
		if strings.HasPrefix(output[i], config.RunMarker) {
			return i
		}
	}
	return -1
}

// findTestCase returns the first test whose fully qualified name starts with name
func findTestCase(testCases []domain.TestCase, name string) (domain.TestCase, bool) {
	if name == "" {
		return domain.TestCase{}, false
	}
	for _, tc := range testCases {
		if strings.HasPrefix(tc.FullyQualifiedName, name) {
			return tc, true
		}
	}
	return domain.TestCase{}, false
}
