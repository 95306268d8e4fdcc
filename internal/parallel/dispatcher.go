package parallel

import (
	"context"

	"github.com/paveg/parmat/internal/accel"
	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
	"github.com/paveg/parmat/internal/validation"
)

// Dispatcher splits matrix operations into row jobs on a WorkerPool and
// blocks the caller until every row has been written.
type Dispatcher struct {
	pool      *WorkerPool
	accel     accel.Accelerator
	threshold int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAccelerator routes products whose result has at least threshold
// cells to acc instead of the pool.
func WithAccelerator(acc accel.Accelerator, threshold int) DispatcherOption {
	return func(d *Dispatcher) {
		d.accel = acc
		d.threshold = threshold
	}
}

// NewDispatcher creates a dispatcher over pool.
func NewDispatcher(pool *WorkerPool, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{pool: pool, threshold: accel.DefaultThreshold}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pool returns the pool jobs are submitted to.
func (d *Dispatcher) Pool() *WorkerPool {
	return d.pool
}

// Dispatch computes every row of dst with kernel, one job per row, and
// waits for all of them. Operand shapes must already be validated.
//
// On a job fault the first fault is returned and dst holds a partial
// result. A cancelled ctx yields an error matching errors.ErrInterrupted;
// a pool that stops before all rows ran yields errors.ErrPoolStopped. In
// both cases rows not yet started are skipped and Dispatch waits for rows
// in progress, so no job writes dst after it returns.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, kernel RowKernel, dst, a, b *matrix.Dense) error {
	return d.dispatch(ctx, kind.String(), kind, kernel, dst, a, b)
}

func (d *Dispatcher) dispatch(ctx context.Context, op string, kind Kind, kernel RowKernel, dst, a, b *matrix.Dense) error {
	if kind == KindStop || kernel == nil {
		return errors.NewInvalidInputError(op, "dispatch needs a row kind and a kernel")
	}
	if dst == nil {
		return errors.NewInvalidInputError(op, "nil destination")
	}

	rows := dst.Rows()
	barrier := NewBarrier(rows)
	for r := range rows {
		job := NewRowJob(kind, kernel, dst, a, b, r, barrier, d.pool.CheckFinite())
		if err := d.pool.Submit(ctx, job); err != nil {
			barrier.Abort(rows - r)
			d.settle(barrier)
			return err
		}
	}

	if err := barrier.Wait(ctx, d.pool.Done()); err != nil {
		if errors.Is(err, errors.ErrJobFailed) {
			return errors.NewJobFailedError(op, err)
		}
		if errors.Is(err, errors.ErrInterrupted) {
			barrier.Abort(0)
			d.settle(barrier)
		}
		return err
	}
	return nil
}

// settle waits for the submitted jobs of an abandoned dispatch. Queued jobs
// skip their kernel; a job already running is waited for. Jobs stranded in
// the queue of a stopped pool never run, so pool shutdown ends the wait.
func (d *Dispatcher) settle(barrier *Barrier) {
	_ = barrier.Wait(context.Background(), d.pool.Done())
}

// Multiply returns a·b.
func (d *Dispatcher) Multiply(ctx context.Context, a, b *matrix.Dense) (*matrix.Dense, error) {
	if err := requireOperands("Multiply", a, b); err != nil {
		return nil, err
	}
	if err := validation.ValidateProduct(a, b, "Multiply"); err != nil {
		return nil, err
	}
	if d.accel != nil && a.Rows()*b.Cols() >= d.threshold {
		return d.accel.Multiply(ctx, a, b)
	}
	return d.run(ctx, "Multiply", KindMultiplyRow, matrix.MulRow, a.Rows(), b.Cols(), a, b)
}

// Add returns a+b.
func (d *Dispatcher) Add(ctx context.Context, a, b *matrix.Dense) (*matrix.Dense, error) {
	return d.elementwise(ctx, "Add", KindAddRow, matrix.AddRow, a, b)
}

// Subtract returns a-b.
func (d *Dispatcher) Subtract(ctx context.Context, a, b *matrix.Dense) (*matrix.Dense, error) {
	return d.elementwise(ctx, "Subtract", KindSubtractRow, matrix.SubRow, a, b)
}

// Hadamard returns the element-wise product of a and b.
func (d *Dispatcher) Hadamard(ctx context.Context, a, b *matrix.Dense) (*matrix.Dense, error) {
	return d.elementwise(ctx, "Hadamard", KindHadamardRow, matrix.HadamardRow, a, b)
}

// Scale returns s·a.
func (d *Dispatcher) Scale(ctx context.Context, a *matrix.Dense, s float64) (*matrix.Dense, error) {
	if err := requireOperands("Scale", a); err != nil {
		return nil, err
	}
	return d.run(ctx, "Scale", KindScaleRow, ScaleKernel(s), a.Rows(), a.Cols(), a, nil)
}

func (d *Dispatcher) elementwise(ctx context.Context, op string, kind Kind, kernel RowKernel, a, b *matrix.Dense) (*matrix.Dense, error) {
	if err := requireOperands(op, a, b); err != nil {
		return nil, err
	}
	if err := validation.ValidateSameShape(a, b, op); err != nil {
		return nil, err
	}
	return d.run(ctx, op, kind, kernel, a.Rows(), a.Cols(), a, b)
}

func (d *Dispatcher) run(ctx context.Context, op string, kind Kind, kernel RowKernel, rows, cols int, a, b *matrix.Dense) (*matrix.Dense, error) {
	dst, err := matrix.New(rows, cols)
	if err != nil {
		return nil, err
	}
	if err := d.dispatch(ctx, op, kind, kernel, dst, a, b); err != nil {
		return nil, err
	}
	return dst, nil
}

func requireOperands(op string, ms ...*matrix.Dense) error {
	for _, m := range ms {
		if m == nil {
			return errors.NewInvalidInputError(op, "nil operand")
		}
	}
	return nil
}
