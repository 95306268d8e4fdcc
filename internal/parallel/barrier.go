package parallel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/paveg/parmat/internal/errors"
)

// Barrier releases once it has been signalled exactly n times. It is single
// use. The first non-nil error passed to Signal is kept and reported by Wait.
type Barrier struct {
	remaining atomic.Int64
	aborted   atomic.Bool
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// NewBarrier creates a barrier expecting n signals. A barrier of size zero
// is released immediately.
func NewBarrier(n int) *Barrier {
	if n < 0 {
		panic("parallel: negative barrier size")
	}
	b := &Barrier{done: make(chan struct{})}
	b.remaining.Store(int64(n))
	if n == 0 {
		close(b.done)
	}
	return b
}

// Signal records one finished job. Signalling more times than the barrier
// size panics.
func (b *Barrier) Signal(err error) {
	if err != nil {
		b.mu.Lock()
		if b.err == nil {
			b.err = err
		}
		b.mu.Unlock()
	}
	b.release(1)
}

// Abort marks the barrier aborted and drops the signals owed by unsubmitted
// jobs, which will never run. Jobs already queued see Aborted and skip their
// work, but still signal.
func (b *Barrier) Abort(unsubmitted int) {
	b.aborted.Store(true)
	if unsubmitted > 0 {
		b.release(int64(unsubmitted))
	}
}

// Aborted reports whether Abort has been called.
func (b *Barrier) Aborted() bool {
	return b.aborted.Load()
}

func (b *Barrier) release(k int64) {
	switch n := b.remaining.Add(-k); {
	case n == 0:
		close(b.done)
	case n < 0:
		panic("parallel: barrier signalled more times than its size")
	}
}

// Wait blocks until the barrier releases and returns the first job error.
// It returns an error matching errors.ErrInterrupted if ctx is cancelled
// first, and one matching errors.ErrPoolStopped if stopped closes first.
// A nil stopped channel is never selected.
func (b *Barrier) Wait(ctx context.Context, stopped <-chan struct{}) error {
	select {
	case <-b.done:
		return b.Err()
	default:
	}

	select {
	case <-b.done:
		return b.Err()
	case <-ctx.Done():
		return errors.NewInterruptedError("Wait", ctx.Err())
	case <-stopped:
		// The last jobs may have run just before the workers exited.
		select {
		case <-b.done:
			return b.Err()
		default:
			return errors.NewPoolStoppedError("Wait")
		}
	}
}

// Done is closed when the barrier releases.
func (b *Barrier) Done() <-chan struct{} {
	return b.done
}

// Remaining returns the number of signals still expected.
func (b *Barrier) Remaining() int {
	return int(max(b.remaining.Load(), 0))
}

// Err returns the first error passed to Signal, if any.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
