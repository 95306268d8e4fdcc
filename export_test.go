package parmat

import "github.com/paveg/parmat/internal/parallel"

// DispatcherOf exposes the engine's dispatcher to tests that need to inject
// their own row kernels.
func DispatcherOf(e *Engine) *parallel.Dispatcher {
	return e.dispatcher
}
