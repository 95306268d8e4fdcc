// Package parallel implements the row-parallel scheduler: a bounded work
// queue, a fixed pool of long-lived workers, row jobs and the completion
// barrier a dispatching caller blocks on.
//
// A dispatch of an R-row result creates one barrier of size R and one job
// per row. Workers take jobs from the shared queue in FIFO order, each job
// writes exactly one destination row and signals the barrier once, and the
// caller returns when the barrier releases. Distinct rows never share cells,
// so the destination needs no locking.
//
// Key features:
//   - Blocking backpressure when the queue is full
//   - Context-based interruption of every blocking call
//   - Sentinel-driven shutdown that consumes one StopJob per worker
//   - Job faults surfaced to the dispatching caller, first error wins
//
// The pool defaults to runtime.NumCPU() workers and is shared by any number
// of concurrent dispatches, whose jobs interleave in one FIFO stream.
package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/paveg/parmat/internal/errors"
)

// WorkerState is the lifecycle state of a single worker.
type WorkerState int32

const (
	WorkerRunning WorkerState = iota
	WorkerStopping
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerRunning:
		return "running"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

type poolState int

const (
	poolCreated poolState = iota
	poolRunning
	poolStopping
	poolStopped
)

func (s poolState) String() string {
	switch s {
	case poolCreated:
		return "created"
	case poolRunning:
		return "running"
	case poolStopping:
		return "stopping"
	case poolStopped:
		return "stopped"
	default:
		return fmt.Sprintf("poolState(%d)", int(s))
	}
}

type worker struct {
	id    int
	alive atomic.Bool
	state atomic.Int32
}

// WorkerPool runs a fixed number of workers over one shared WorkQueue.
type WorkerPool struct {
	numWorkers    int
	queueCapacity int
	checkFinite   bool
	logger        *slog.Logger

	queue   *WorkQueue
	metrics *PoolMetrics

	mu      sync.Mutex
	state   poolState
	workers []*worker
	wg      sync.WaitGroup
	done    chan struct{}
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithWorkers sets the worker count. Non-positive values select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(p *WorkerPool) { p.numWorkers = n }
}

// WithQueueCapacity sets the capacity of the pool's queue.
func WithQueueCapacity(n int) Option {
	return func(p *WorkerPool) { p.queueCapacity = n }
}

// WithLogger sets the logger used for lifecycle and job failure events.
func WithLogger(l *slog.Logger) Option {
	return func(p *WorkerPool) { p.logger = l }
}

// WithFiniteCheck makes row jobs fail when they write NaN or ±Inf.
func WithFiniteCheck(enabled bool) Option {
	return func(p *WorkerPool) { p.checkFinite = enabled }
}

// NewWorkerPool creates a pool. No goroutine runs until Start.
func NewWorkerPool(opts ...Option) *WorkerPool {
	p := &WorkerPool{
		metrics: &PoolMetrics{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.numWorkers <= 0 {
		p.numWorkers = runtime.NumCPU()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.queue = NewWorkQueue(p.queueCapacity)
	return p
}

// Start spawns the workers. Cancelling ctx interrupts workers blocked on an
// empty queue; they log the interruption and exit. Once every worker has
// exited the queue is closed, so later submissions fail with
// errors.ErrPoolStopped instead of filling a queue nobody drains.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case poolRunning:
		return &errors.MatrixError{
			Op:      "Start",
			Row:     errors.NoRow,
			Message: "worker pool already started",
			Cause:   errors.ErrPoolAlreadyStarted,
		}
	case poolStopping, poolStopped:
		return errors.NewPoolStoppedError("Start")
	}

	p.state = poolRunning
	p.workers = make([]*worker, p.numWorkers)
	for i := range p.workers {
		w := &worker{id: i}
		w.alive.Store(true)
		w.state.Store(int32(WorkerRunning))
		p.workers[i] = w
		p.wg.Add(1)
		go p.run(ctx, w)
	}
	go p.awaitWorkers()

	p.logger.Info("worker pool started", "workers", p.numWorkers, "queue_capacity", p.queue.Cap())
	return nil
}

// awaitWorkers closes the queue and done once the last worker has exited.
// Workers that leave without Stop, e.g. on an interrupted Start, leave the
// pool stopped.
func (p *WorkerPool) awaitWorkers() {
	p.wg.Wait()

	p.mu.Lock()
	if p.state == poolRunning {
		p.state = poolStopped
		p.logger.Warn("worker pool stopped without Stop", "workers", p.numWorkers)
	}
	p.mu.Unlock()

	p.queue.Close()
	close(p.done)
}

func (p *WorkerPool) run(ctx context.Context, w *worker) {
	defer p.wg.Done()
	defer w.state.Store(int32(WorkerStopped))

	// Liveness is checked after each job, so an idle worker always leaves
	// through its sentinel.
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, errors.ErrInterrupted) {
				p.logger.Warn("worker interrupted", "worker", w.id, "error", err)
			}
			return
		}
		if job.Kind() == KindStop {
			atomic.AddInt64(&p.metrics.SentinelsConsumed, 1)
			return
		}
		p.execute(w, job)
		if !w.alive.Load() {
			return
		}
	}
}

func (p *WorkerPool) execute(w *worker, job Job) {
	defer func() {
		// RowJob recovers its own panics; this keeps the worker alive for
		// any other Job implementation.
		if r := recover(); r != nil {
			atomic.AddInt64(&p.metrics.JobsCompleted, 1)
			atomic.AddInt64(&p.metrics.JobsFailed, 1)
			p.logger.Error("job panicked", "worker", w.id, "kind", job.Kind(), "panic", r)
		}
	}()

	err := job.Run()
	atomic.AddInt64(&p.metrics.JobsCompleted, 1)
	if err != nil {
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		p.logger.Debug("job failed", "worker", w.id, "kind", job.Kind(), "error", err)
	}
}

// Submit enqueues job, blocking while the queue is full. A ctx that is
// already done fails without enqueueing.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case poolCreated:
		return &errors.MatrixError{
			Op:      "Submit",
			Row:     errors.NoRow,
			Message: "worker pool not started",
			Cause:   errors.ErrPoolNotStarted,
		}
	case poolStopping, poolStopped:
		return errors.NewPoolStoppedError("Submit")
	}
	if job == nil || job.Kind() == KindStop {
		return errors.NewInvalidInputError("Submit", "stop sentinels are reserved for Stop")
	}
	if err := ctx.Err(); err != nil {
		return errors.NewInterruptedError("Submit", err)
	}

	atomic.AddInt64(&p.metrics.JobsSubmitted, 1)
	if err := p.queue.Enqueue(ctx, job); err != nil {
		atomic.AddInt64(&p.metrics.JobsSubmitted, -1)
		if errors.Is(err, errors.ErrQueueClosed) {
			return errors.NewPoolStoppedError("Submit")
		}
		return err
	}
	return nil
}

// Stop marks every worker as stopping, enqueues one StopJob per worker and
// waits until all of them have exited. The queue is then closed, so any
// producer still blocked in Submit fails with errors.ErrPoolStopped. Stop is
// idempotent; later calls only wait for the first one to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	switch p.state {
	case poolCreated:
		p.state = poolStopped
		p.queue.Close()
		close(p.done)
		p.mu.Unlock()
		return
	case poolStopping, poolStopped:
		p.mu.Unlock()
		<-p.done
		return
	}
	p.state = poolStopping
	workers := p.workers
	p.mu.Unlock()

	for _, w := range workers {
		w.alive.Store(false)
		w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerStopping))
	}

	// Sentinels can only block on a full queue; give up once every worker
	// is gone, e.g. after an interrupted Start.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	for range workers {
		if err := p.queue.Enqueue(ctx, StopJob{}); err != nil {
			break
		}
	}

	<-p.done
	p.queue.Close()

	p.mu.Lock()
	p.state = poolStopped
	p.mu.Unlock()

	stats := p.metrics.snapshot()
	p.logger.Info("worker pool stopped",
		"workers", len(workers),
		"jobs_completed", stats.JobsCompleted,
		"jobs_failed", stats.JobsFailed,
		"sentinels_consumed", stats.SentinelsConsumed)
}

// Done is closed once every worker has exited.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.done
}

// NumWorkers returns the configured worker count.
func (p *WorkerPool) NumWorkers() int {
	return p.numWorkers
}

// QueueLen returns the number of jobs waiting in the queue.
func (p *WorkerPool) QueueLen() int {
	return p.queue.Len()
}

// CheckFinite reports whether row jobs created for this pool check for NaN/Inf.
func (p *WorkerPool) CheckFinite() bool {
	return p.checkFinite
}

// WorkerStates returns the state of each worker, indexed by worker id.
// It is empty before Start.
func (p *WorkerPool) WorkerStates() []WorkerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = WorkerState(w.state.Load())
	}
	return states
}

// Stats returns a snapshot of the pool metrics.
func (p *WorkerPool) Stats() PoolStats {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	m := p.metrics.snapshot()
	q := p.queue.Stats()
	return PoolStats{
		State:              state.String(),
		Workers:            p.numWorkers,
		JobsSubmitted:      m.JobsSubmitted,
		JobsCompleted:      m.JobsCompleted,
		JobsFailed:         m.JobsFailed,
		SentinelsConsumed:  m.SentinelsConsumed,
		BackpressureEvents: q.FullWaits,
		QueueLength:        q.Length,
		QueueCapacity:      q.Capacity,
		MaxQueueDepth:      q.MaxDepth,
	}
}
