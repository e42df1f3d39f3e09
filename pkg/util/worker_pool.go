package util

import (
	"github.com/panjf2000/ants/v2"
)

// WorkerPool hands submitted functions to a bounded set of goroutines.
type WorkerPool interface {
	// Submit schedules fn on a pool routine. The returned error covers
	// scheduling only, fn's own outcome travels by whatever channel the
	// caller set up.
	Submit(fn func()) error

	// Release shuts the pool down. Functions already running are not
	// awaited, a caller needing completion tracks it itself.
	Release()
}

// ErrPoolClosed reports a Submit against a released pool.
var ErrPoolClosed = ants.ErrPoolClosed

// ErrPoolOverload reports a Submit to a non-blocking pool with every
// routine busy.
var ErrPoolOverload = ants.ErrPoolOverload

// NewWorkerPool returns a pool running at most size functions at once.
// Submissions past that block until a routine frees up.
func NewWorkerPool(size int) (WorkerPool, error) {
	return ants.NewPool(size)
}

// NewNonblockingWorkerPool returns a pool whose Submit never waits:
// with no routine free it fails with ErrPoolOverload instead.
func NewNonblockingWorkerPool(size int) (WorkerPool, error) {
	return ants.NewPool(size, ants.WithNonblocking(true))
}
