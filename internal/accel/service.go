package accel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/paveg/parmat/internal/errors"
	"github.com/paveg/parmat/internal/matrix"
)

type request struct {
	a, b  *matrix.Dense
	reply chan response
}

type response struct {
	m   *matrix.Dense
	err error
}

// Service owns one goroutine that serves Multiply requests in arrival order.
type Service struct {
	backend   Backend
	queueSize int
	logger    *slog.Logger

	requests chan request
	quit     chan struct{}
	done     chan struct{}
	served   atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool
}

// Option configures a Service.
type Option func(*Service)

// WithBackend replaces the default CPUBackend.
func WithBackend(b Backend) Option {
	return func(s *Service) { s.backend = b }
}

// WithQueueSize bounds the number of pending requests.
func WithQueueSize(n int) Option {
	return func(s *Service) { s.queueSize = n }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a stopped accelerator service.
func NewService(opts ...Option) *Service {
	s := &Service{
		backend:   CPUBackend{},
		queueSize: DefaultQueueSize,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queueSize <= 0 {
		s.queueSize = DefaultQueueSize
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.requests = make(chan request, s.queueSize)
	return s
}

// Start launches the dedicated worker. It exits when Stop is called or ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return stoppedError("Start")
	}
	if s.started {
		return errors.NewInvalidInputError("Start", "accelerator already started")
	}
	s.started = true
	go s.loop(ctx)

	s.logger.Info("accelerator started", "backend", s.backend.Name(), "queue_size", s.queueSize)
	return nil
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case req := <-s.requests:
			m, err := s.compute(req.a, req.b)
			s.served.Add(1)
			req.reply <- response{m: m, err: err}
		case <-s.quit:
			return
		case <-ctx.Done():
			s.logger.Warn("accelerator interrupted", "error", ctx.Err())
			return
		}
	}
}

func (s *Service) compute(a, b *matrix.Dense) (m *matrix.Dense, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternalError("Accelerator.Multiply", fmt.Errorf("backend %s panicked: %v", s.backend.Name(), r))
		}
	}()
	return s.backend.Multiply(a, b)
}

// Multiply sends a·b to the dedicated worker and waits for the result.
func (s *Service) Multiply(ctx context.Context, a, b *matrix.Dense) (*matrix.Dense, error) {
	if a == nil || b == nil {
		return nil, errors.NewInvalidInputError("Accelerator.Multiply", "nil operand")
	}
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, stoppedError("Multiply")
	}
	if !started {
		return nil, errors.NewInvalidInputError("Accelerator.Multiply", "accelerator not started")
	}

	req := request{a: a, b: b, reply: make(chan response, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, errors.NewInterruptedError("Accelerator.Multiply", ctx.Err())
	case <-s.done:
		return nil, stoppedError("Multiply")
	}

	select {
	case res := <-req.reply:
		return res.m, res.err
	case <-ctx.Done():
		return nil, errors.NewInterruptedError("Accelerator.Multiply", ctx.Err())
	case <-s.done:
		select {
		case res := <-req.reply:
			return res.m, res.err
		default:
			return nil, stoppedError("Multiply")
		}
	}
}

// Stop terminates the worker and waits for it. Requests still queued are
// answered with errors.ErrAcceleratorStopped by their callers.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	if !started {
		close(s.done)
		return
	}
	close(s.quit)
	<-s.done
	s.logger.Info("accelerator stopped", "served", s.served.Load())
}

// Served returns the number of requests computed so far.
func (s *Service) Served() int64 {
	return s.served.Load()
}

// Backend returns the backend name.
func (s *Service) Backend() string {
	return s.backend.Name()
}

func stoppedError(op string) error {
	return &errors.MatrixError{
		Op:      "Accelerator." + op,
		Row:     errors.NoRow,
		Message: "accelerator stopped",
		Cause:   errors.ErrAcceleratorStopped,
	}
}
