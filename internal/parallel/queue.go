package parallel

import (
	"context"
	"sync"

	"github.com/paveg/parmat/internal/errors"
)

// DefaultQueueCapacity is the number of jobs a WorkQueue holds before
// producers block.
const DefaultQueueCapacity = 128

// WorkQueue is a bounded FIFO ring buffer guarded by one mutex and two
// condition variables. Enqueue blocks while the buffer is full and Dequeue
// blocks while it is empty; neither ever drops or reorders a job.
type WorkQueue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items  []Job
	head   int
	tail   int
	count  int
	closed bool

	// observed under mu
	maxDepth  int
	fullWaits int64
}

// QueueStats is a point-in-time view of a WorkQueue.
type QueueStats struct {
	Length    int   `json:"length"`
	Capacity  int   `json:"capacity"`
	MaxDepth  int   `json:"max_depth"`
	FullWaits int64 `json:"full_waits"`
	Closed    bool  `json:"closed"`
}

// NewWorkQueue creates a queue holding up to capacity jobs.
// A non-positive capacity selects DefaultQueueCapacity.
func NewWorkQueue(capacity int) *WorkQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &WorkQueue{items: make([]Job, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends job at the tail, blocking while the queue is full.
// If ctx is cancelled while blocked the job is not inserted and the
// returned error matches errors.ErrInterrupted.
func (q *WorkQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.items) && !q.closed {
		q.fullWaits++
		defer q.wakeOnCancel(ctx)()
	}
	for q.count == len(q.items) && !q.closed {
		if err := ctx.Err(); err != nil {
			return errors.NewInterruptedError("Enqueue", err)
		}
		q.notFull.Wait()
	}
	if q.closed {
		return closedError("Enqueue")
	}

	q.items[q.tail] = job
	q.tail = (q.tail + 1) % len(q.items)
	q.count++
	if q.count > q.maxDepth {
		q.maxDepth = q.count
	}
	q.notEmpty.Broadcast()
	return nil
}

// Dequeue removes the job at the head, blocking while the queue is empty.
// Once the queue is closed Dequeue returns errors.ErrQueueClosed without
// handing out any remaining job.
func (q *WorkQueue) Dequeue(ctx context.Context) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 && !q.closed {
		defer q.wakeOnCancel(ctx)()
	}
	for q.count == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInterruptedError("Dequeue", err)
		}
		q.notEmpty.Wait()
	}
	if q.closed {
		return nil, closedError("Dequeue")
	}

	job := q.items[q.head]
	q.items[q.head] = nil
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.notFull.Broadcast()
	return job, nil
}

// Close wakes every blocked caller. Later Enqueue and Dequeue calls fail
// with errors.ErrQueueClosed.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the number of queued jobs.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *WorkQueue) Cap() int {
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *WorkQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Length:    q.count,
		Capacity:  len(q.items),
		MaxDepth:  q.maxDepth,
		FullWaits: q.fullWaits,
		Closed:    q.closed,
	}
}

// wakeOnCancel arranges for both conditions to be broadcast when ctx is
// done, so a waiter can observe the cancellation. Call with mu held; the
// returned func must be called before mu is released.
func (q *WorkQueue) wakeOnCancel(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
}

func closedError(op string) error {
	return &errors.MatrixError{Op: op, Row: errors.NoRow, Message: "queue closed", Cause: errors.ErrQueueClosed}
}
