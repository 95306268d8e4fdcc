package parallel_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	mxerrors "github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/paveg/parmat/internal/parallel"
	"github.com/paveg/parmat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicJob struct{}

func (panicJob) Kind() parallel.Kind { return parallel.KindAddRow }

func (panicJob) Run() error { panic("unguarded job") }

func quietPool(opts ...parallel.Option) *parallel.WorkerPool {
	return parallel.NewWorkerPool(append([]parallel.Option{parallel.WithLogger(testutil.DiscardLogger())}, opts...)...)
}

func TestNewWorkerPool(t *testing.T) {
	pool := quietPool()
	assert.Equal(t, runtime.NumCPU(), pool.NumWorkers())
	assert.Empty(t, pool.WorkerStates())
	assert.Equal(t, "created", pool.Stats().State)
	assert.Equal(t, parallel.DefaultQueueCapacity, pool.Stats().QueueCapacity)

	pool = quietPool(parallel.WithWorkers(3), parallel.WithQueueCapacity(16), parallel.WithFiniteCheck(true))
	assert.Equal(t, 3, pool.NumWorkers())
	assert.Equal(t, 16, pool.Stats().QueueCapacity)
	assert.True(t, pool.CheckFinite())
}

func TestWorkerPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := quietPool(parallel.WithWorkers(2))

	err := pool.Submit(ctx, parallel.NewRowJob(parallel.KindAddRow, matrix.AddRow, nil, nil, nil, 0, nil, false))
	require.ErrorIs(t, err, mxerrors.ErrPoolNotStarted)

	require.NoError(t, pool.Start(ctx))
	assert.ErrorIs(t, pool.Start(ctx), mxerrors.ErrPoolAlreadyStarted)
	assert.Equal(t, []parallel.WorkerState{parallel.WorkerRunning, parallel.WorkerRunning}, pool.WorkerStates())

	assert.ErrorIs(t, pool.Submit(ctx, parallel.StopJob{}), mxerrors.ErrInvalidInput)

	pool.Stop()
	assert.ErrorIs(t, pool.Start(ctx), mxerrors.ErrPoolStopped)
	assert.ErrorIs(t, pool.Submit(ctx, panicJob{}), mxerrors.ErrPoolStopped)
	assert.Equal(t, "stopped", pool.Stats().State)

	assert.NotPanics(t, pool.Stop, "Stop is idempotent")
}

func TestWorkerPoolStopIdleConsumesOneSentinelPerWorker(t *testing.T) {
	const workers = 4
	pool := quietPool(parallel.WithWorkers(workers))
	require.NoError(t, pool.Start(context.Background()))

	pool.Stop()

	select {
	case <-pool.Done():
	default:
		t.Fatal("Done must be closed after Stop returns")
	}
	stats := pool.Stats()
	assert.Equal(t, int64(workers), stats.SentinelsConsumed)
	assert.Zero(t, stats.QueueLength)
	for i, state := range pool.WorkerStates() {
		assert.Equal(t, parallel.WorkerStopped, state, "worker %d", i)
	}
}

func TestWorkerPoolStopBeforeStart(t *testing.T) {
	pool := quietPool()
	pool.Stop()

	select {
	case <-pool.Done():
	default:
		t.Fatal("Done must be closed for a pool stopped before Start")
	}
	assert.ErrorIs(t, pool.Start(context.Background()), mxerrors.ErrPoolStopped)
}

func TestWorkerPoolContextInterruption(t *testing.T) {
	pool := quietPool(parallel.WithWorkers(3))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	cancel()
	select {
	case <-pool.Done():
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after cancellation")
	}
	for _, state := range pool.WorkerStates() {
		assert.Equal(t, parallel.WorkerStopped, state)
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a pool whose workers already exited")
	}
	assert.Zero(t, pool.Stats().SentinelsConsumed)
}

func TestWorkerPoolRejectsWorkAfterInterruption(t *testing.T) {
	pool := quietPool(parallel.WithWorkers(2), parallel.WithQueueCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	cancel()
	<-pool.Done()

	assert.Equal(t, "stopped", pool.Stats().State)
	err := pool.Submit(context.Background(), parallel.NewRowJob(parallel.KindAddRow, matrix.AddRow, nil, nil, nil, 0, nil, false))
	require.ErrorIs(t, err, mxerrors.ErrPoolStopped)

	// More rows than the queue holds.
	d := parallel.NewDispatcher(pool)
	a := testutil.RandomMatrix(t, 16, 2)
	result := make(chan error, 1)
	go func() {
		_, err := d.Add(context.Background(), a, a)
		result <- err
	}()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, mxerrors.ErrPoolStopped)
	case <-time.After(2 * time.Second):
		t.Fatalf("Add blocked on a pool whose workers exited (queue len %d)", pool.QueueLen())
	}
	assert.Zero(t, pool.QueueLen())
}

func TestPoolStateString(t *testing.T) {
	pool := quietPool(parallel.WithWorkers(1))
	assert.Equal(t, "created", pool.Stats().State)
	require.NoError(t, pool.Start(context.Background()))
	assert.Equal(t, "running", pool.Stats().State)
	pool.Stop()
	assert.Equal(t, "stopped", pool.Stats().State)
}

func TestWorkerPoolRunsJobs(t *testing.T) {
	pool := testutil.StartedPool(t, parallel.WithWorkers(4))
	ctx := context.Background()

	const jobs = 100
	var ran atomic.Int64
	dst, _ := matrix.New(1, 1)
	barrier := parallel.NewBarrier(jobs)
	for range jobs {
		job := parallel.NewRowJob(parallel.KindAddRow, func(_, _, _ *matrix.Dense, _ int) error {
			ran.Add(1)
			return nil
		}, dst, nil, nil, 0, barrier, false)
		require.NoError(t, pool.Submit(ctx, job))
	}

	require.NoError(t, barrier.Wait(ctx, pool.Done()))
	assert.Equal(t, int64(jobs), ran.Load())
	assert.Eventually(t, func() bool {
		return pool.Stats().JobsCompleted == jobs
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(jobs), pool.Stats().JobsSubmitted)
}

func TestWorkerPoolSurvivesPanickingJob(t *testing.T) {
	pool := testutil.StartedPool(t, parallel.WithWorkers(1))
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, panicJob{}))

	barrier := parallel.NewBarrier(1)
	dst, _ := matrix.New(1, 1)
	require.NoError(t, pool.Submit(ctx, parallel.NewRowJob(parallel.KindAddRow,
		func(_, _, _ *matrix.Dense, _ int) error { return nil }, dst, nil, nil, 0, barrier, false)))

	require.NoError(t, barrier.Wait(ctx, pool.Done()))
	assert.Eventually(t, func() bool {
		s := pool.Stats()
		return s.JobsCompleted == 2 && s.JobsFailed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerPoolSubmitWithDoneContext(t *testing.T) {
	pool := testutil.StartedPool(t, parallel.WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Submit(ctx, seqJob{})
	require.ErrorIs(t, err, mxerrors.ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, pool.Stats().JobsSubmitted)
	assert.Zero(t, pool.QueueLen())
}
