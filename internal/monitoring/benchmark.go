package monitoring

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

const (
	defaultIterations = 10
	bytesToMB         = 1024 * 1024
	percentageBase    = 100
)

// BenchmarkScenario is one timed matrix workload.
type BenchmarkScenario struct {
	Name        string
	Description string
	Rows, Cols  int
	Operation   func() error
	Iterations  int
	Parallel    bool
	// Baseline marks the scenario other results are compared against.
	Baseline bool
}

// BenchmarkResult contains the results of running a benchmark scenario.
type BenchmarkResult struct {
	Scenario          BenchmarkScenario `json:"scenario"`
	Duration          time.Duration     `json:"duration"`
	AverageDuration   time.Duration     `json:"average_duration"`
	MinDuration       time.Duration     `json:"min_duration"`
	MaxDuration       time.Duration     `json:"max_duration"`
	MemoryAllocated   int64             `json:"memory_allocated"`
	MemoryAllocations int64             `json:"memory_allocations"`
	OperationsPerSec  float64           `json:"operations_per_sec"`
	Success           bool              `json:"success"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

// BenchmarkSuite runs scenarios one after another and reports on them.
type BenchmarkSuite struct {
	scenarios []BenchmarkScenario
	results   []BenchmarkResult
}

// NewBenchmarkSuite creates an empty suite.
func NewBenchmarkSuite() *BenchmarkSuite {
	return &BenchmarkSuite{}
}

// AddScenario adds a scenario to the suite.
func (bs *BenchmarkSuite) AddScenario(scenario BenchmarkScenario) {
	bs.scenarios = append(bs.scenarios, scenario)
}

// Run executes every scenario in order and returns the results.
func (bs *BenchmarkSuite) Run() []BenchmarkResult {
	bs.results = make([]BenchmarkResult, 0, len(bs.scenarios))
	for _, scenario := range bs.scenarios {
		bs.results = append(bs.results, runScenario(scenario))
	}
	return bs.results
}

func runScenario(scenario BenchmarkScenario) BenchmarkResult {
	if scenario.Iterations <= 0 {
		scenario.Iterations = defaultIterations
	}
	result := BenchmarkResult{Scenario: scenario, Success: true}

	var memBefore, memAfter runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&memBefore)

	completed := 0
	for i := range scenario.Iterations {
		start := time.Now()
		if err := scenario.Operation(); err != nil {
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("Iteration %d failed: %v", i+1, err)
			break
		}
		d := time.Since(start)
		result.Duration += d
		if completed == 0 || d < result.MinDuration {
			result.MinDuration = d
		}
		if d > result.MaxDuration {
			result.MaxDuration = d
		}
		completed++
	}

	runtime.ReadMemStats(&memAfter)
	result.MemoryAllocated = int64(memAfter.TotalAlloc - memBefore.TotalAlloc) //nolint:gosec // monotonic counter
	result.MemoryAllocations = int64(memAfter.Mallocs - memBefore.Mallocs)     //nolint:gosec // monotonic counter

	if completed > 0 {
		result.AverageDuration = result.Duration / time.Duration(completed)
	}
	if result.AverageDuration > 0 {
		result.OperationsPerSec = 1.0 / result.AverageDuration.Seconds()
	}
	return result
}

// GetResults returns the results of the last Run.
func (bs *BenchmarkSuite) GetResults() []BenchmarkResult {
	return bs.results
}

// GenerateReport renders the results of the last Run as markdown.
func (bs *BenchmarkSuite) GenerateReport() string {
	if len(bs.results) == 0 {
		return "# Benchmark Report\n\nNo benchmark results available.\n"
	}

	var report strings.Builder
	report.WriteString("# parmat Benchmark Report\n\n")
	fmt.Fprintf(&report, "Generated: %s on %d CPUs\n\n", time.Now().Format(time.RFC3339), runtime.NumCPU())

	baseline, hasBaseline := bs.baseline()

	report.WriteString("| Scenario | Shape | Iterations | Avg Duration | Ops/Sec | Memory (MB) | Speedup | Status |\n")
	report.WriteString("|----------|-------|------------|--------------|---------|-------------|---------|--------|\n")
	for _, result := range bs.results {
		status := "ok"
		if !result.Success {
			status = "failed"
		}
		speedup := "-"
		if hasBaseline && result.Success && result.AverageDuration > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(baseline.AverageDuration)/float64(result.AverageDuration))
		}
		fmt.Fprintf(&report, "| %s | %dx%d | %d | %v | %.2f | %.2f | %s | %s |\n",
			result.Scenario.Name,
			result.Scenario.Rows, result.Scenario.Cols,
			result.Scenario.Iterations,
			result.AverageDuration,
			result.OperationsPerSec,
			float64(result.MemoryAllocated)/bytesToMB,
			speedup,
			status)
	}
	report.WriteString("\n")

	for _, result := range bs.results {
		if !result.Success {
			fmt.Fprintf(&report, "- **%s:** %s\n", result.Scenario.Name, result.ErrorMessage)
		}
	}

	successful := bs.successCount()
	fmt.Fprintf(&report, "- **Success Rate:** %d/%d (%.1f%%)\n",
		successful, len(bs.results), float64(successful)/float64(len(bs.results))*percentageBase)

	return report.String()
}

// baseline returns the first successful baseline result.
func (bs *BenchmarkSuite) baseline() (BenchmarkResult, bool) {
	for _, result := range bs.results {
		if result.Scenario.Baseline && result.Success && result.AverageDuration > 0 {
			return result, true
		}
	}
	return BenchmarkResult{}, false
}

func (bs *BenchmarkSuite) successCount() int {
	n := 0
	for _, result := range bs.results {
		if result.Success {
			n++
		}
	}
	return n
}

// Clear removes all scenarios and results from the suite.
func (bs *BenchmarkSuite) Clear() {
	bs.scenarios = bs.scenarios[:0]
	bs.results = bs.results[:0]
}
