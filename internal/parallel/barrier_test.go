package parallel_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mxerrors "github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierZeroSize(t *testing.T) {
	b := parallel.NewBarrier(0)
	select {
	case <-b.Done():
	default:
		t.Fatal("zero-size barrier should be released at creation")
	}
	assert.NoError(t, b.Wait(context.Background(), nil))
	assert.Panics(t, func() { parallel.NewBarrier(-1) })
}

func TestBarrierReleasesOnExactCount(t *testing.T) {
	const n = 5
	b := parallel.NewBarrier(n)

	for range n - 1 {
		b.Signal(nil)
	}
	assert.Equal(t, 1, b.Remaining())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Wait(ctx, nil)
	require.ErrorIs(t, err, mxerrors.ErrInterrupted, "n-1 signals must not release")

	b.Signal(nil)
	assert.Equal(t, 0, b.Remaining())
	assert.NoError(t, b.Wait(context.Background(), nil))

	assert.Panics(t, func() { b.Signal(nil) }, "signal beyond the barrier size")
}

func TestBarrierConcurrentSignals(t *testing.T) {
	const n = 200
	b := parallel.NewBarrier(n)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Signal(nil)
		}()
	}

	require.NoError(t, b.Wait(context.Background(), nil))
	wg.Wait()
	assert.Equal(t, 0, b.Remaining())
}

func TestBarrierFirstErrorWins(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	b := parallel.NewBarrier(3)
	b.Signal(nil)
	b.Signal(first)
	b.Signal(second)

	err := b.Wait(context.Background(), nil)
	assert.Same(t, first, err)
	assert.Same(t, first, b.Err())
}

func TestBarrierWaitOnStoppedPool(t *testing.T) {
	stopped := make(chan struct{})
	close(stopped)

	b := parallel.NewBarrier(2)
	b.Signal(nil)
	assert.ErrorIs(t, b.Wait(context.Background(), stopped), mxerrors.ErrPoolStopped)

	// A released barrier wins over a stopped pool.
	b.Signal(nil)
	assert.NoError(t, b.Wait(context.Background(), stopped))
}

func TestBarrierAbort(t *testing.T) {
	t.Run("drops unsubmitted signals", func(t *testing.T) {
		b := parallel.NewBarrier(3)
		b.Signal(nil)
		assert.False(t, b.Aborted())

		b.Abort(2)
		assert.True(t, b.Aborted())
		assert.Equal(t, 0, b.Remaining())
		assert.NoError(t, b.Wait(context.Background(), nil))
	})

	t.Run("still waits for submitted jobs", func(t *testing.T) {
		b := parallel.NewBarrier(2)
		b.Abort(0)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, b.Wait(ctx, nil), mxerrors.ErrInterrupted)

		b.Signal(nil)
		b.Signal(nil)
		assert.NoError(t, b.Wait(context.Background(), nil))
	})

	t.Run("over-release panics", func(t *testing.T) {
		b := parallel.NewBarrier(2)
		assert.Panics(t, func() { b.Abort(3) })
	})
}
