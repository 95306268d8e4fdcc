package parmat

import (
	"context"
	"log/slog"
	"time"

	"github.com/paveg/parmat/internal/accel"
	"github.com/paveg/parmat/internal/config"
	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/paveg/parmat/internal/monitoring"
	"github.com/paveg/parmat/internal/parallel"
)

// Config holds the engine configuration. See LoadConfig for the file and
// environment variable formats.
type Config = config.Config

// PoolStats is a snapshot of an engine's worker pool.
type PoolStats = parallel.PoolStats

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a .json, .yaml or .yml file and applies PARMAT_*
// environment variables on top of it. An empty path loads the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg = cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.NewInvalidInputError("LoadConfig", err.Error())
	}
	return cfg, nil
}

// Engine runs matrix operations row-parallel on its own worker pool.
// It is safe for concurrent use; the jobs of concurrent calls interleave
// in the pool's single FIFO queue.
type Engine struct {
	cfg        Config
	logger     *slog.Logger
	pool       *parallel.WorkerPool
	accel      *accel.Service
	dispatcher *parallel.Dispatcher
	collector  *monitoring.MetricsCollector
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cfg    Config
	logger *slog.Logger
}

// WithWorkers sets the number of workers. Zero selects runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *engineOptions) { o.cfg.WorkerPoolSize = n }
}

// WithQueueCapacity sets how many row jobs may wait before callers block.
func WithQueueCapacity(n int) Option {
	return func(o *engineOptions) { o.cfg.QueueCapacity = n }
}

// WithFiniteCheck makes operations fail when a row produces NaN or ±Inf.
func WithFiniteCheck(enabled bool) Option {
	return func(o *engineOptions) { o.cfg.CheckFinite = enabled }
}

// WithAccelerator routes products with at least threshold result cells to
// the dedicated accelerator worker.
func WithAccelerator(threshold int) Option {
	return func(o *engineOptions) {
		o.cfg.AcceleratorEnabled = true
		o.cfg.AcceleratorThreshold = threshold
	}
}

// WithMetrics enables recording of every operation.
func WithMetrics(enabled bool) Option {
	return func(o *engineOptions) { o.cfg.MetricsCollection = enabled }
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// NewEngine creates an engine from the global configuration and opts.
func NewEngine(opts ...Option) (*Engine, error) {
	o := engineOptions{cfg: config.GetGlobalConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return newEngine(o.cfg, o.logger)
}

// NewEngineFromConfig creates an engine from cfg, then applies opts. Zero
// values take defaults.
func NewEngineFromConfig(cfg Config, opts ...Option) (*Engine, error) {
	o := engineOptions{cfg: cfg}
	for _, opt := range opts {
		opt(&o)
	}
	return newEngine(o.cfg, o.logger)
}

func newEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInvalidInputError("NewEngine", err.Error())
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool := parallel.NewWorkerPool(
		parallel.WithWorkers(cfg.WorkerPoolSize),
		parallel.WithQueueCapacity(cfg.QueueCapacity),
		parallel.WithFiniteCheck(cfg.CheckFinite),
		parallel.WithLogger(logger),
	)

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		collector: monitoring.NewMetricsCollector(cfg.MetricsCollection),
	}

	var dispatchOpts []parallel.DispatcherOption
	if cfg.AcceleratorEnabled {
		e.accel = accel.NewService(
			accel.WithQueueSize(cfg.AcceleratorQueueSize),
			accel.WithLogger(logger),
		)
		dispatchOpts = append(dispatchOpts, parallel.WithAccelerator(e.accel, cfg.AcceleratorThreshold))
	}
	e.dispatcher = parallel.NewDispatcher(pool, dispatchOpts...)
	return e, nil
}

// Start launches the workers and, when enabled, the accelerator.
// Cancelling ctx makes idle workers exit; prefer Stop for shutdown.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.pool.Start(ctx); err != nil {
		return err
	}
	if e.accel != nil {
		if err := e.accel.Start(ctx); err != nil {
			e.pool.Stop()
			return err
		}
	}
	return nil
}

// Stop shuts the workers down, one stop sentinel per worker, and waits for
// them. Operations still waiting fail with ErrPoolStopped. Stop is idempotent.
func (e *Engine) Stop() {
	if e.accel != nil {
		e.accel.Stop()
	}
	e.pool.Stop()
}

// Multiply returns a·b.
func (e *Engine) Multiply(ctx context.Context, a, b *Matrix) (*Matrix, error) {
	if err := operands("Multiply", a, b); err != nil {
		return nil, err
	}
	rows, cols := a.Rows(), b.Cols()
	accelerated := e.accel != nil && rows*cols >= e.cfg.AcceleratorThreshold
	return e.record("Multiply", rows, cols, accelerated, func() (*matrix.Dense, error) {
		return e.dispatcher.Multiply(ctx, a.m, b.m)
	})
}

// Add returns a+b.
func (e *Engine) Add(ctx context.Context, a, b *Matrix) (*Matrix, error) {
	if err := operands("Add", a, b); err != nil {
		return nil, err
	}
	return e.record("Add", a.Rows(), a.Cols(), false, func() (*matrix.Dense, error) {
		return e.dispatcher.Add(ctx, a.m, b.m)
	})
}

// Subtract returns a-b.
func (e *Engine) Subtract(ctx context.Context, a, b *Matrix) (*Matrix, error) {
	if err := operands("Subtract", a, b); err != nil {
		return nil, err
	}
	return e.record("Subtract", a.Rows(), a.Cols(), false, func() (*matrix.Dense, error) {
		return e.dispatcher.Subtract(ctx, a.m, b.m)
	})
}

// Hadamard returns the cellwise product of a and b.
func (e *Engine) Hadamard(ctx context.Context, a, b *Matrix) (*Matrix, error) {
	if err := operands("Hadamard", a, b); err != nil {
		return nil, err
	}
	return e.record("Hadamard", a.Rows(), a.Cols(), false, func() (*matrix.Dense, error) {
		return e.dispatcher.Hadamard(ctx, a.m, b.m)
	})
}

// Scale returns s·a.
func (e *Engine) Scale(ctx context.Context, a *Matrix, s float64) (*Matrix, error) {
	if err := operands("Scale", a); err != nil {
		return nil, err
	}
	return e.record("Scale", a.Rows(), a.Cols(), false, func() (*matrix.Dense, error) {
		return e.dispatcher.Scale(ctx, a.m, s)
	})
}

func (e *Engine) record(op string, rows, cols int, accelerated bool, fn func() (*matrix.Dense, error)) (*Matrix, error) {
	start := time.Now()
	out, err := fn()

	if e.collector.IsEnabled() {
		m := monitoring.OperationMetrics{
			Operation:   op,
			Duration:    time.Since(start),
			Rows:        rows,
			Cols:        cols,
			Parallel:    !accelerated,
			Accelerated: accelerated,
		}
		if !accelerated {
			m.Jobs = rows
		}
		if err != nil {
			m.Error = err.Error()
		}
		e.collector.Record(m)
	}
	if err != nil {
		e.logger.Debug("operation failed", "op", op, "rows", rows, "cols", cols, "error", err)
	}
	return wrap(out, err)
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Workers returns the number of pool workers.
func (e *Engine) Workers() int {
	return e.pool.NumWorkers()
}

// Stats returns a snapshot of the worker pool.
func (e *Engine) Stats() PoolStats {
	return e.pool.Stats()
}

// AcceleratedCount returns how many products the accelerator has served.
func (e *Engine) AcceleratedCount() int64 {
	if e.accel == nil {
		return 0
	}
	return e.accel.Served()
}

// Metrics summarises the operations recorded by this engine.
func (e *Engine) Metrics() MetricsSummary {
	return e.collector.GetSummary()
}

// MonitoringServer returns an HTTP server exposing this engine's metrics
// and pool state on port. The caller starts and stops it.
func (e *Engine) MonitoringServer(port int) *monitoring.Server {
	return monitoring.NewMonitoringServer(e.collector, port, monitoring.WithStatsProvider(e))
}
