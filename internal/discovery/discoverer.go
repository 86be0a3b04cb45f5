package discovery

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"gtp/internal/domain"
)

// Discoverer discovers the tests of many executables concurrently
type Discoverer struct {
	factory    *Factory
	maxWorkers int
}

// NewDiscoverer creates a Discoverer running at most maxWorkers listings at a time
func NewDiscoverer(factory *Factory, maxWorkers int) *Discoverer {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Discoverer{factory: factory, maxWorkers: maxWorkers}
}

// Discover returns one report per executable, in input order. onTestCase is
// serialized across executables.
func (d *Discoverer) Discover(ctx context.Context, executables []string, onTestCase func(domain.TestCase)) []Report {
	reports := make([]Report, len(executables))

	var mu sync.Mutex
	report := onTestCase
	if onTestCase != nil {
		report = func(tc domain.TestCase) {
			mu.Lock()
			defer mu.Unlock()
			onTestCase(tc)
		}
	}

	p := pool.New().WithMaxGoroutines(d.maxWorkers)
	for i, exe := range executables {
		p.Go(func() {
			reports[i] = d.factory.CreateTestCases(ctx, exe, report)
		})
	}
	p.Wait()

	return reports
}

// TestCases flattens the test cases of all reports
func TestCases(reports []Report) []domain.TestCase {
	var all []domain.TestCase
	for _, r := range reports {
		all = append(all, r.TestCases...)
	}
	return all
}
