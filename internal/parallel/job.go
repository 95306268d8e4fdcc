package parallel

import (
	"fmt"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
)

// Kind identifies what a job computes.
type Kind int

const (
	// KindStop is the shutdown sentinel. A worker that dequeues it exits.
	KindStop Kind = iota
	KindMultiplyRow
	KindAddRow
	KindSubtractRow
	KindHadamardRow
	KindScaleRow
)

func (k Kind) String() string {
	switch k {
	case KindStop:
		return "Stop"
	case KindMultiplyRow:
		return "MultiplyRow"
	case KindAddRow:
		return "AddRow"
	case KindSubtractRow:
		return "SubtractRow"
	case KindHadamardRow:
		return "HadamardRow"
	case KindScaleRow:
		return "ScaleRow"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Job is a unit of work consumed exactly once by a worker.
type Job interface {
	Kind() Kind
	Run() error
}

// RowKernel computes row r of dst from the operands a and b.
type RowKernel func(dst, a, b *matrix.Dense, r int) error

// ScaleKernel adapts matrix.ScaleRow to the RowKernel shape. b is ignored.
func ScaleKernel(s float64) RowKernel {
	return func(dst, a, _ *matrix.Dense, r int) error {
		return matrix.ScaleRow(dst, a, s, r)
	}
}

// StopJob is the sentinel enqueued once per worker by WorkerPool.Stop.
type StopJob struct{}

func (StopJob) Kind() Kind { return KindStop }

func (StopJob) Run() error { return nil }

// RowJob computes one destination row and then signals its barrier.
// The matrices are shared with every other job of the same dispatch;
// a RowJob only ever writes dst's row.
type RowJob struct {
	kind        Kind
	kernel      RowKernel
	dst, a, b   *matrix.Dense
	row         int
	barrier     *Barrier
	checkFinite bool
}

// NewRowJob creates a job for row r. barrier may be nil when nobody waits.
func NewRowJob(kind Kind, kernel RowKernel, dst, a, b *matrix.Dense, r int, barrier *Barrier, checkFinite bool) *RowJob {
	return &RowJob{
		kind:        kind,
		kernel:      kernel,
		dst:         dst,
		a:           a,
		b:           b,
		row:         r,
		barrier:     barrier,
		checkFinite: checkFinite,
	}
}

func (j *RowJob) Kind() Kind { return j.kind }

// Row returns the destination row this job writes.
func (j *RowJob) Row() int { return j.row }

// Run executes the kernel. Whatever happens, the barrier is signalled
// exactly once, carrying the fault if there was one. A job whose barrier
// was aborted leaves dst untouched.
func (j *RowJob) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = j.fault(fmt.Errorf("panic: %v", r))
		}
		if j.barrier != nil {
			j.barrier.Signal(err)
		}
	}()

	if j.barrier != nil && j.barrier.Aborted() {
		return nil
	}
	if j.kernel == nil {
		return j.fault(errors.ErrInvalidInput)
	}
	if kerr := j.kernel(j.dst, j.a, j.b, j.row); kerr != nil {
		return j.fault(kerr)
	}
	if j.checkFinite {
		if ferr := matrix.CheckRowFinite(j.dst, j.row); ferr != nil {
			return j.fault(ferr)
		}
	}
	return nil
}

func (j *RowJob) fault(cause error) error {
	return &errors.JobError{Kind: j.kind.String(), Row: j.row, Cause: cause}
}
