// Command parmat-cli runs row-parallel matrix operations on files, measures
// the engine against the sequential kernels and serves the monitoring
// endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/paveg/parmat"
	"github.com/paveg/parmat/internal/monitoring"
	"github.com/paveg/parmat/internal/version"
)

const shutdownTimeout = 5 * time.Second

type globalFlags struct {
	configPath string
	workers    int
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "parmat-cli",
		Short:         "Row-parallel dense matrix operations",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "configuration file (.json, .yaml, .yml)")
	root.PersistentFlags().IntVar(&g.workers, "workers", 0, "worker count (0 = configuration or NumCPU)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newBinaryCmd(&g, "multiply", "Multiply two matrices", (*parmat.Engine).Multiply),
		newBinaryCmd(&g, "add", "Add two matrices", (*parmat.Engine).Add),
		newBinaryCmd(&g, "subtract", "Subtract the second matrix from the first", (*parmat.Engine).Subtract),
		newBenchCmd(&g),
		newServeCmd(&g),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration file and environment, then applies
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command, g *globalFlags) (parmat.Config, *slog.Logger, error) {
	cfg, err := parmat.LoadConfig(g.configPath)
	if err != nil {
		return parmat.Config{}, nil, err
	}
	if cmd.Flags().Changed("workers") {
		cfg.WorkerPoolSize = g.workers
	}
	if g.verbose {
		cfg.VerboseLogging = true
	}
	return cfg, cfg.NewLogger(cmd.ErrOrStderr()), nil
}

func startEngine(ctx context.Context, cfg parmat.Config, logger *slog.Logger) (*parmat.Engine, error) {
	engine, err := parmat.NewEngineFromConfig(cfg, parmat.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

type binaryOp func(*parmat.Engine, context.Context, *parmat.Matrix, *parmat.Matrix) (*parmat.Matrix, error)

func newBinaryCmd(g *globalFlags, name, short string, op binaryOp) *cobra.Command {
	var aPath, bPath, outPath string

	cmd := &cobra.Command{
		Use:   name + " --a FILE --b FILE [--out FILE]",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			a, err := parmat.ReadMatrix(aPath)
			if err != nil {
				return err
			}
			b, err := parmat.ReadMatrix(bPath)
			if err != nil {
				return err
			}

			engine, err := startEngine(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Stop()

			start := time.Now()
			result, err := op(engine, cmd.Context(), a, b)
			if err != nil {
				return err
			}
			logger.Info("operation finished", "op", name,
				"rows", result.Rows(), "cols", result.Cols(),
				"workers", engine.Workers(), "duration", time.Since(start))

			if outPath == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), result)
				return err
			}
			return parmat.WriteMatrix(outPath, result)
		},
	}
	cmd.Flags().StringVar(&aPath, "a", "", "left operand file")
	cmd.Flags().StringVar(&bPath, "b", "", "right operand file")
	cmd.Flags().StringVar(&outPath, "out", "", "result file (default: print to stdout)")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}

type benchFlags struct {
	size       int
	callers    int
	iterations int
	seed       int64
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	var f benchFlags

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare sequential and row-parallel multiplication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.size <= 0 || f.callers <= 0 || f.iterations <= 0 {
				return fmt.Errorf("size, callers and iterations must be positive")
			}
			cfg, logger, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			engine, err := startEngine(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Stop()

			suite, err := benchSuite(cmd.Context(), engine, f)
			if err != nil {
				return err
			}
			results := suite.Run()
			_, err = io.WriteString(cmd.OutOrStdout(), suite.GenerateReport())
			if err != nil {
				return err
			}
			for _, r := range results {
				if !r.Success {
					return fmt.Errorf("scenario %s: %s", r.Scenario.Name, r.ErrorMessage)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&f.size, "size", 256, "rows and columns of the square operands")
	cmd.Flags().IntVar(&f.callers, "callers", 4, "concurrent callers sharing the pool")
	cmd.Flags().IntVar(&f.iterations, "iterations", 3, "iterations per scenario")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "seed of the random operands")
	return cmd
}

// benchSuite builds the scenarios. Every parallel result is checked against
// the fingerprint of the sequential product.
func benchSuite(ctx context.Context, engine *parmat.Engine, f benchFlags) (*monitoring.BenchmarkSuite, error) {
	a, err := parmat.Random(f.size, f.size, f.seed)
	if err != nil {
		return nil, err
	}
	b, err := parmat.Random(f.size, f.size, f.seed+1)
	if err != nil {
		return nil, err
	}
	want, err := parmat.Multiply(a, b)
	if err != nil {
		return nil, err
	}
	fingerprint := want.Fingerprint()

	verify := func(m *parmat.Matrix) error {
		if m.Fingerprint() != fingerprint {
			return fmt.Errorf("fingerprint %x differs from sequential %x", m.Fingerprint(), fingerprint)
		}
		return nil
	}

	suite := monitoring.NewBenchmarkSuite()
	suite.AddScenario(monitoring.BenchmarkScenario{
		Name:        "sequential",
		Description: "single goroutine product",
		Rows:        f.size, Cols: f.size,
		Iterations: f.iterations,
		Baseline:   true,
		Operation: func() error {
			m, err := parmat.Multiply(a, b)
			if err != nil {
				return err
			}
			return verify(m)
		},
	})
	suite.AddScenario(monitoring.BenchmarkScenario{
		Name:        fmt.Sprintf("parallel-%dw", engine.Workers()),
		Description: "one caller, one job per row",
		Rows:        f.size, Cols: f.size,
		Iterations: f.iterations,
		Parallel:   true,
		Operation: func() error {
			m, err := engine.Multiply(ctx, a, b)
			if err != nil {
				return err
			}
			return verify(m)
		},
	})
	suite.AddScenario(monitoring.BenchmarkScenario{
		Name:        fmt.Sprintf("concurrent-%dx", f.callers),
		Description: "callers sharing one pool",
		Rows:        f.size, Cols: f.size,
		Iterations: f.iterations,
		Parallel:   true,
		Operation: func() error {
			g, gctx := errgroup.WithContext(ctx)
			for range f.callers {
				g.Go(func() error {
					m, err := engine.Multiply(gctx, a, b)
					if err != nil {
						return err
					}
					return verify(m)
				})
			}
			return g.Wait()
		},
	})
	return suite, nil
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		port int
		load time.Duration
		size int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an engine and serve its metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			cfg.MetricsCollection = true
			if cmd.Flags().Changed("port") {
				cfg.MonitoringPort = port
			}

			ctx := cmd.Context()
			engine, err := startEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Stop()

			server := engine.MonitoringServer(cfg.MonitoringPort)
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				logger.Info("monitoring server listening", "addr", server.Addr())
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			if load > 0 {
				eg.Go(func() error { return generateLoad(ctx, engine, size, load, logger) })
			}
			return eg.Wait()
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: monitoring_port from the configuration)")
	cmd.Flags().DurationVar(&load, "load", 0, "run a random product at this interval (0 = idle)")
	cmd.Flags().IntVar(&size, "load-size", 128, "operand size of the generated load")
	return cmd
}

func generateLoad(ctx context.Context, engine *parmat.Engine, size int, every time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for seed := int64(1); ; seed++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		a, err := parmat.Random(size, size, seed)
		if err != nil {
			return err
		}
		if _, err := engine.Multiply(ctx, a, a); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("load product failed", "error", err)
		}
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Info()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := io.WriteString(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
