package upload

import (
	"context"
	"fmt"
	"sort"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/rnowak-basho-forks/riak-cs/pkg/util"
)

// Pool is the bounded writer resource shared by all concurrent uploads.
// Writers exist as numbered slots: an upload acquires a set of slot IDs
// for its lifetime while the actual I/O runs on a goroutine pool of the
// same capacity. Acquisition blocks while the pool is drained, which in
// turn blocks the prepare transition of new uploads.
type Pool struct {
	wp  util.WorkerPool
	ids chan int
}

// NewPool creates a writer pool with the given number of writer slots.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: writer pool size must be positive", common.ErrInvalidArgument)
	}

	wp, err := util.NewWorkerPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	ids := make(chan int, size)
	for i := 0; i < size; i++ {
		ids <- i
	}

	return &Pool{wp: wp, ids: ids}, nil
}

// acquire takes n writer slots, blocking until they become available or
// ctx is done. Slots taken before cancellation are handed back.
func (p *Pool) acquire(ctx context.Context, n int) ([]int, error) {
	taken := make([]int, 0, n)

	for len(taken) < n {
		select {
		case id := <-p.ids:
			taken = append(taken, id)
		case <-ctx.Done():
			p.release(taken)
			return nil, fmt.Errorf("acquire writers: %w", ctx.Err())
		}
	}

	sort.Ints(taken)

	return taken, nil
}

// release hands writer slots back to the pool.
func (p *Pool) release(ids []int) {
	for _, id := range ids {
		p.ids <- id
	}
}

// submit queues fn for execution on the pool's goroutines.
func (p *Pool) submit(fn func()) error {
	return p.wp.Submit(fn)
}

// Close releases the pool's goroutines. In-flight writers finish on their
// own, uploads synchronize with them through their event streams.
func (p *Pool) Close() {
	p.wp.Release()
}
