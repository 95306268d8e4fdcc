// Package config provides configuration management for parmat matrix operations
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
	"gopkg.in/yaml.v3"
)

// Config represents the global configuration for parmat
type Config struct {
	// Scheduler Configuration
	WorkerPoolSize int  `json:"worker_pool_size" yaml:"worker_pool_size"` // Number of worker goroutines (0 = auto-detect)
	QueueCapacity  int  `json:"queue_capacity" yaml:"queue_capacity"`     // Jobs the work queue holds before producers block
	CheckFinite    bool `json:"check_finite" yaml:"check_finite"`         // Fail row jobs that produce NaN or Inf

	// Accelerator Configuration
	AcceleratorEnabled   bool `json:"accelerator_enabled" yaml:"accelerator_enabled"`       // Route large products to the accelerator
	AcceleratorThreshold int  `json:"accelerator_threshold" yaml:"accelerator_threshold"`   // Result cells from which products are routed
	AcceleratorQueueSize int  `json:"accelerator_queue_size" yaml:"accelerator_queue_size"` // Pending accelerator requests

	// Observability Configuration
	MetricsCollection bool   `json:"metrics_collection" yaml:"metrics_collection"` // Enable metrics collection
	VerboseLogging    bool   `json:"verbose_logging" yaml:"verbose_logging"`       // Enable verbose logging
	LogLevel          string `json:"log_level" yaml:"log_level"`                   // debug, info, warn or error
	MonitoringPort    int    `json:"monitoring_port" yaml:"monitoring_port"`       // Port of the monitoring HTTP server
}

// SystemInfo contains system information for configuration validation
type SystemInfo struct {
	CPUCount     int      `json:"cpu_count"`
	Architecture string   `json:"architecture"`
	OSType       string   `json:"os_type"`
	GoVersion    string   `json:"go_version"`
	CPUFeatures  []string `json:"cpu_features"`
}

// ConfigValidator validates and provides recommendations for configuration
type ConfigValidator struct {
	systemInfo SystemInfo
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultQueueCapacity        = 128
	DefaultAcceleratorThreshold = 1 << 16
	DefaultAcceleratorQueueSize = 16
	DefaultLogLevel             = "info"
	DefaultMonitoringPort       = 9090
)

// envPrefix prefixes every environment variable read by LoadFromEnv.
const envPrefix = "PARMAT_"

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		// Scheduler defaults
		WorkerPoolSize: 0, // Auto-detect
		QueueCapacity:  DefaultQueueCapacity,
		CheckFinite:    false,

		// Accelerator defaults (disabled)
		AcceleratorEnabled:   false,
		AcceleratorThreshold: DefaultAcceleratorThreshold,
		AcceleratorQueueSize: DefaultAcceleratorQueueSize,

		// Observability defaults
		MetricsCollection: false,
		VerboseLogging:    false,
		LogLevel:          DefaultLogLevel,
		MonitoringPort:    DefaultMonitoringPort,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}

	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QueueCapacity must be positive, got %d", c.QueueCapacity)
	}

	if c.AcceleratorThreshold <= 0 {
		return fmt.Errorf("AcceleratorThreshold must be positive, got %d", c.AcceleratorThreshold)
	}

	if c.AcceleratorQueueSize <= 0 {
		return fmt.Errorf("AcceleratorQueueSize must be positive, got %d", c.AcceleratorQueueSize)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("MonitoringPort must be between 0 and 65535, got %d", c.MonitoringPort)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	// Apply defaults for zero values
	if c.QueueCapacity == 0 {
		c.QueueCapacity = defaults.QueueCapacity
	}
	if c.AcceleratorThreshold == 0 {
		c.AcceleratorThreshold = defaults.AcceleratorThreshold
	}
	if c.AcceleratorQueueSize == 0 {
		c.AcceleratorQueueSize = defaults.AcceleratorQueueSize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.MonitoringPort == 0 {
		c.MonitoringPort = defaults.MonitoringPort
	}

	// Note: Boolean fields are intentionally not set to defaults here
	// This allows distinguishing between explicitly set false and unset values

	return c
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from PARMAT_* environment variables on top of the defaults
func LoadFromEnv() Config {
	return NewConfig().ApplyEnv()
}

// ApplyEnv returns c with every PARMAT_* environment variable that is set and
// parses applied. Unparseable values are ignored.
func (c Config) ApplyEnv() Config {
	envInt("WORKER_POOL_SIZE", &c.WorkerPoolSize)
	envInt("QUEUE_CAPACITY", &c.QueueCapacity)
	envBool("CHECK_FINITE", &c.CheckFinite)
	envBool("ACCELERATOR_ENABLED", &c.AcceleratorEnabled)
	envInt("ACCELERATOR_THRESHOLD", &c.AcceleratorThreshold)
	envInt("ACCELERATOR_QUEUE_SIZE", &c.AcceleratorQueueSize)
	envBool("METRICS_COLLECTION", &c.MetricsCollection)
	envBool("VERBOSE_LOGGING", &c.VerboseLogging)
	if val := os.Getenv(envPrefix + "LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}
	envInt("MONITORING_PORT", &c.MonitoringPort)
	return c
}

func envInt(name string, dst *int) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}

// Level returns the slog level for the configuration. VerboseLogging forces debug.
func (c Config) Level() slog.Level {
	if c.VerboseLogging {
		return slog.LevelDebug
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LogLevel must be one of debug, info, warn, error, got %q", s)
	}
}

// GetSystemInfo returns system information for configuration validation
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		CPUCount:     runtime.NumCPU(),
		Architecture: runtime.GOARCH,
		OSType:       runtime.GOOS,
		GoVersion:    runtime.Version(),
		CPUFeatures:  cpuFeatures(),
	}
}

// cpuFeatures lists the SIMD extensions the row kernels can benefit from.
func cpuFeatures() []string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasFPHP, "fphp")
		add(cpu.ARM64.HasSVE, "sve")
	}
	return features
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		systemInfo: GetSystemInfo(),
	}
}

// Validate validates a configuration and provides recommendations
func (cv *ConfigValidator) Validate(config Config) (Config, []string, error) {
	var warnings []string
	validated := config

	// Basic validation
	if err := config.Validate(); err != nil {
		return Config{}, warnings, err
	}

	// Validate worker pool size
	if config.WorkerPoolSize > cv.systemInfo.CPUCount*2 {
		warnings = append(warnings,
			fmt.Sprintf("Worker pool size (%d) exceeds 2x CPU count (%d), may cause contention",
				config.WorkerPoolSize, cv.systemInfo.CPUCount))
	}

	// Auto-adjust unset values
	if config.WorkerPoolSize == 0 {
		validated.WorkerPoolSize = cv.systemInfo.CPUCount
		warnings = append(warnings,
			fmt.Sprintf("Auto-setting worker pool size to %d (CPU count)",
				validated.WorkerPoolSize))
	}

	// A queue smaller than the pool leaves workers idle while producers block
	if validated.QueueCapacity < validated.WorkerPoolSize {
		warnings = append(warnings,
			fmt.Sprintf("Queue capacity (%d) is smaller than the worker pool (%d), producers will block often",
				validated.QueueCapacity, validated.WorkerPoolSize))
	}

	return validated, warnings, nil
}
