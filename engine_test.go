package parmat_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/paveg/parmat"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/paveg/parmat/internal/parallel"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startedEngine(t *testing.T, opts ...parmat.Option) *parmat.Engine {
	t.Helper()
	opts = append([]parmat.Option{parmat.WithLogger(quietLogger())}, opts...)
	engine, err := parmat.NewEngine(opts...)
	require.NoError(t, err)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(engine.Stop)
	return engine
}

func TestEngineScenarios(t *testing.T) {
	engine := startedEngine(t, parmat.WithWorkers(2))
	ctx := context.Background()
	a := mustRows(t, []float64{2, -3}, []float64{-1, 4})

	x, err := parmat.ColumnVector(1, -1)
	require.NoError(t, err)
	product, err := engine.Multiply(ctx, a, x)
	require.NoError(t, err)
	assert.True(t, product.Equal(mustRows(t, []float64{5}, []float64{-5})))

	sum, err := engine.Add(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, sum.Equal(mustRows(t, []float64{4, -6}, []float64{-2, 8})))

	diff, err := engine.Subtract(ctx, sum, a)
	require.NoError(t, err)
	assert.True(t, diff.Equal(a))

	sq, err := engine.Hadamard(ctx, a, a)
	require.NoError(t, err)
	assert.True(t, sq.Equal(mustRows(t, []float64{4, 9}, []float64{1, 16})))

	neg, err := engine.Scale(ctx, a, -1)
	require.NoError(t, err)
	assert.True(t, neg.Equal(mustRows(t, []float64{-2, 3}, []float64{1, -4})))

	assert.Equal(t, 2, engine.Workers())
	stats := engine.Stats()
	assert.Equal(t, "running", stats.State)
	assert.Equal(t, int64(10), stats.JobsSubmitted)
}

func TestEngineMatchesSequential(t *testing.T) {
	engine := startedEngine(t, parmat.WithWorkers(4), parmat.WithQueueCapacity(8))
	ctx := context.Background()

	a, err := parmat.Random(64, 48, 1)
	require.NoError(t, err)
	b, err := parmat.Random(48, 32, 2)
	require.NoError(t, err)
	c, err := parmat.Random(64, 48, 3)
	require.NoError(t, err)

	parallelProduct, err := engine.Multiply(ctx, a, b)
	require.NoError(t, err)
	sequentialProduct, err := parmat.Multiply(a, b)
	require.NoError(t, err)
	assert.True(t, parallelProduct.EqualApprox(sequentialProduct, 1e-9))

	parallelSum, err := engine.Add(ctx, a, c)
	require.NoError(t, err)
	sequentialSum, err := parmat.Add(a, c)
	require.NoError(t, err)
	assert.Equal(t, sequentialSum.Fingerprint(), parallelSum.Fingerprint())
}

func TestEngineConcurrentCallers(t *testing.T) {
	engine := startedEngine(t, parmat.WithWorkers(3), parmat.WithQueueCapacity(4))
	a, err := parmat.Random(40, 20, 11)
	require.NoError(t, err)
	b, err := parmat.Random(20, 10, 12)
	require.NoError(t, err)
	want, err := parmat.Multiply(a, b)
	require.NoError(t, err)

	g, ctx := errgroup.WithContext(context.Background())
	results := make([]*parmat.Matrix, 6)
	for i := range results {
		g.Go(func() error {
			var err error
			results[i], err = engine.Multiply(ctx, a, b)
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, got := range results {
		assert.True(t, got.EqualApprox(want, 1e-9))
	}
}

func TestEngineErrors(t *testing.T) {
	t.Run("invalid configuration", func(t *testing.T) {
		_, err := parmat.NewEngine(parmat.WithWorkers(-1))
		require.ErrorIs(t, err, parmat.ErrInvalidInput)
	})

	t.Run("not started", func(t *testing.T) {
		engine, err := parmat.NewEngine(parmat.WithLogger(quietLogger()))
		require.NoError(t, err)
		a := mustRows(t, []float64{1})
		_, err = engine.Add(context.Background(), a, a)
		require.ErrorIs(t, err, parmat.ErrPoolNotStarted)
		engine.Stop()
	})

	t.Run("started twice", func(t *testing.T) {
		engine := startedEngine(t)
		require.ErrorIs(t, engine.Start(context.Background()), parmat.ErrPoolAlreadyStarted)
	})

	t.Run("stopped", func(t *testing.T) {
		engine := startedEngine(t, parmat.WithWorkers(2))
		engine.Stop()
		engine.Stop()
		a := mustRows(t, []float64{1})
		_, err := engine.Add(context.Background(), a, a)
		require.ErrorIs(t, err, parmat.ErrPoolStopped)
		assert.Equal(t, "stopped", engine.Stats().State)
		assert.Equal(t, int64(2), engine.Stats().SentinelsConsumed)
	})

	t.Run("dimension mismatch and nil", func(t *testing.T) {
		engine := startedEngine(t)
		a := mustRows(t, []float64{1, 2})
		_, err := engine.Multiply(context.Background(), a, a)
		require.ErrorIs(t, err, parmat.ErrDimensionMismatch)
		_, err = engine.Hadamard(context.Background(), a, nil)
		require.ErrorIs(t, err, parmat.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		engine := startedEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		a, err := parmat.Random(16, 16, 5)
		require.NoError(t, err)
		_, err = engine.Multiply(ctx, a, a)
		require.ErrorIs(t, err, parmat.ErrInterrupted)
	})

	t.Run("non-finite result", func(t *testing.T) {
		engine := startedEngine(t, parmat.WithFiniteCheck(true))
		a := mustRows(t, []float64{math.MaxFloat64, 1}, []float64{1, 1})
		_, err := engine.Scale(context.Background(), a, 10)
		require.ErrorIs(t, err, parmat.ErrNaNInf)
		require.ErrorIs(t, err, parmat.ErrJobFailed)

		var me *parmat.MatrixError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, 0, me.Row)
	})
}

func TestEngineAccelerator(t *testing.T) {
	engine := startedEngine(t, parmat.WithWorkers(2), parmat.WithAccelerator(100))
	ctx := context.Background()

	small, err := parmat.Random(4, 4, 1)
	require.NoError(t, err)
	_, err = engine.Multiply(ctx, small, small)
	require.NoError(t, err)
	assert.Zero(t, engine.AcceleratedCount())

	big, err := parmat.Random(20, 20, 2)
	require.NoError(t, err)
	got, err := engine.Multiply(ctx, big, big)
	require.NoError(t, err)
	assert.Equal(t, int64(1), engine.AcceleratedCount())

	want, err := parmat.Multiply(big, big)
	require.NoError(t, err)
	assert.True(t, got.EqualApprox(want, 1e-9))
}

func TestEngineMetrics(t *testing.T) {
	engine := startedEngine(t, parmat.WithWorkers(2), parmat.WithMetrics(true), parmat.WithAccelerator(100))
	ctx := context.Background()

	a, err := parmat.Random(3, 3, 1)
	require.NoError(t, err)
	big, err := parmat.Random(10, 10, 2)
	require.NoError(t, err)

	_, err = engine.Add(ctx, a, a)
	require.NoError(t, err)
	_, err = engine.Multiply(ctx, big, big)
	require.NoError(t, err)
	_, err = engine.Add(ctx, a, big)
	require.Error(t, err)

	summary := engine.Metrics()
	assert.Equal(t, 3, summary.TotalOperations)
	assert.Equal(t, 2, summary.ParallelOperations)
	assert.Equal(t, 1, summary.AcceleratedOperations)
	assert.Equal(t, 1, summary.FailedOperations)
	assert.Equal(t, int64(3+10+3), summary.TotalRows)

	t.Run("monitoring server", func(t *testing.T) {
		server := engine.MonitoringServer(0)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pool", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var stats parmat.PoolStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 2, stats.Workers)
		assert.Equal(t, "running", stats.State)
	})
}

func TestEngineMetricsDisabled(t *testing.T) {
	engine := startedEngine(t, parmat.WithMetrics(false))
	a := mustRows(t, []float64{1})
	_, err := engine.Add(context.Background(), a, a)
	require.NoError(t, err)
	assert.Zero(t, engine.Metrics().TotalOperations)
}

func TestEngineStopInterruptsWaitingCaller(t *testing.T) {
	engine := startedEngine(t, parmat.WithWorkers(1), parmat.WithQueueCapacity(1))
	d := parmat.DispatcherOf(engine)

	gate := make(chan struct{})
	started := make(chan struct{}, 4)
	a, err := matrix.NewFromRows([]float64{1}, []float64{2}, []float64{3}, []float64{4})
	require.NoError(t, err)
	dst, err := matrix.New(4, 1)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		errc <- d.Dispatch(context.Background(), parallel.KindAddRow, func(dst, a, b *matrix.Dense, r int) error {
			started <- struct{}{}
			<-gate
			return matrix.AddRow(dst, a, b, r)
		}, dst, a, a)
	}()

	// Row 0 runs, row 1 fills the queue and the caller blocks on row 2.
	<-started
	require.Eventually(t, func() bool {
		stats := engine.Stats()
		return stats.QueueLength == 1 && stats.BackpressureEvents >= 1
	}, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		engine.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		return engine.Stats().State == "stopping"
	}, time.Second, time.Millisecond)
	close(gate)

	select {
	case err := <-errc:
		require.ErrorIs(t, err, parmat.ErrPoolStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("caller still blocked after Stop")
	}
	<-stopped

	row2, _ := dst.Row(2)
	assert.Equal(t, []float64{0}, row2, "rows never submitted stay unwritten")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := parmat.LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, parmat.DefaultConfig().QueueCapacity, cfg.QueueCapacity)
	})

	t.Run("yaml file with env override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "parmat.yaml")
		require.NoError(t, os.WriteFile(path, []byte("worker_pool_size: 3\nqueue_capacity: 16\n"), 0o600))
		t.Setenv("PARMAT_QUEUE_CAPACITY", "32")

		cfg, err := parmat.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.WorkerPoolSize)
		assert.Equal(t, 32, cfg.QueueCapacity)

		engine, err := parmat.NewEngineFromConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, 3, engine.Workers())
		assert.Equal(t, 32, engine.Stats().QueueCapacity)
		engine.Stop()
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("PARMAT_LOG_LEVEL", "loud")
		_, err := parmat.LoadConfig("")
		require.ErrorIs(t, err, parmat.ErrInvalidInput)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := parmat.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}
