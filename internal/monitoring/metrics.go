// Package monitoring provides performance monitoring and metrics collection for matrix operations.
package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// DefaultMaxRecords bounds how many operations a collector retains.
const DefaultMaxRecords = 10000

// OperationMetrics represents performance metrics for a single matrix operation.
type OperationMetrics struct {
	Operation   string        `json:"operation"`
	Duration    time.Duration `json:"duration"`
	Rows        int           `json:"rows"`
	Cols        int           `json:"cols"`
	Jobs        int           `json:"jobs"`
	MemoryUsed  int64         `json:"memory_used"`
	Parallel    bool          `json:"parallel"`
	Accelerated bool          `json:"accelerated"`
	Error       string        `json:"error,omitempty"`
}

// MetricsCollector collects and stores performance metrics for matrix operations.
// Once maxRecords is reached the oldest record is dropped.
type MetricsCollector struct {
	mu         sync.RWMutex
	metrics    []OperationMetrics
	enabled    bool
	maxRecords int
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{
		metrics:    make([]OperationMetrics, 0),
		enabled:    enabled,
		maxRecords: DefaultMaxRecords,
	}
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// RecordOperation executes fn and records its duration and approximate heap growth.
func (mc *MetricsCollector) RecordOperation(operation string, fn func() error) error {
	if !mc.IsEnabled() {
		return fn()
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)
	start := time.Now()

	err := fn()

	duration := time.Since(start)
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	m := OperationMetrics{
		Operation:  operation,
		Duration:   duration,
		MemoryUsed: int64(memAfter.TotalAlloc - memBefore.TotalAlloc), //nolint:gosec // TotalAlloc is monotonic
	}
	if err != nil {
		m.Error = err.Error()
	}
	mc.Record(m)
	return err
}

// Record stores a metrics record built by the caller.
func (mc *MetricsCollector) Record(m OperationMetrics) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if !mc.enabled {
		return
	}
	if len(mc.metrics) >= mc.maxRecords {
		copy(mc.metrics, mc.metrics[1:])
		mc.metrics = mc.metrics[:len(mc.metrics)-1]
	}
	mc.metrics = append(mc.metrics, m)
}

// GetMetrics returns a copy of all collected metrics.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]OperationMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// Clear removes all collected metrics.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	summary := MetricsSummary{
		TotalOperations: len(mc.metrics),
		OperationCounts: make(map[string]int),
	}
	for _, metric := range mc.metrics {
		summary.TotalDuration += metric.Duration
		summary.TotalMemory += metric.MemoryUsed
		summary.TotalRows += int64(metric.Rows)
		summary.OperationCounts[metric.Operation]++
		if metric.Parallel {
			summary.ParallelOperations++
		}
		if metric.Accelerated {
			summary.AcceleratedOperations++
		}
		if metric.Error != "" {
			summary.FailedOperations++
		}
	}
	summary.AverageDuration = summary.TotalDuration / time.Duration(len(mc.metrics))
	return summary
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalOperations       int            `json:"total_operations"`
	ParallelOperations    int            `json:"parallel_operations"`
	AcceleratedOperations int            `json:"accelerated_operations"`
	FailedOperations      int            `json:"failed_operations"`
	TotalDuration         time.Duration  `json:"total_duration"`
	AverageDuration       time.Duration  `json:"average_duration"`
	TotalMemory           int64          `json:"total_memory"`
	TotalRows             int64          `json:"total_rows"`
	OperationCounts       map[string]int `json:"operation_counts"`
}
