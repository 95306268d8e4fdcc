package monitoring

import (
	"sync"
)

// The global collector is used by the package-level sequential helpers of
// parmat, which have no Engine to carry a collector.
//
//nolint:gochecknoglobals // process-wide collector
var (
	globalCollector *MetricsCollector
	globalMutex     sync.RWMutex
)

// SetGlobalCollector sets the global metrics collector. nil disables recording.
func SetGlobalCollector(collector *MetricsCollector) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalCollector = collector
}

// GetGlobalCollector returns the global metrics collector, or nil.
func GetGlobalCollector() *MetricsCollector {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalCollector
}

// RecordGlobalOperation runs fn, recording it when a global collector is set.
func RecordGlobalOperation(operation string, fn func() error) error {
	collector := GetGlobalCollector()
	if collector == nil {
		return fn()
	}
	return collector.RecordOperation(operation, fn)
}

// IsGlobalMonitoringEnabled returns true if a global collector is set and enabled.
func IsGlobalMonitoringEnabled() bool {
	collector := GetGlobalCollector()
	return collector != nil && collector.IsEnabled()
}

// EnableGlobalMonitoring installs a fresh, enabled global collector and returns it.
func EnableGlobalMonitoring() *MetricsCollector {
	collector := NewMetricsCollector(true)
	SetGlobalCollector(collector)
	return collector
}

// DisableGlobalMonitoring stops the global collector from recording. Collected
// metrics stay readable.
func DisableGlobalMonitoring() {
	if collector := GetGlobalCollector(); collector != nil {
		collector.SetEnabled(false)
	}
}

// GetGlobalSummary returns a summary from the global collector.
func GetGlobalSummary() MetricsSummary {
	collector := GetGlobalCollector()
	if collector == nil {
		return MetricsSummary{}
	}
	return collector.GetSummary()
}
