package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("worker pool is closed")

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

type job struct {
	ctx  context.Context
	idx  int
	fn   func(ctx context.Context, i int) error
	errs []error
	wg   *sync.WaitGroup
}

// Pool is a fixed set of worker goroutines fed from a shared job queue.
// A single Pool is meant to be reused across all stages of a sweep.
type Pool struct {
	size    int
	jobs    chan job
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts a pool with size workers. A non-positive size uses runtime.NumCPU().
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		size: size,
		jobs: make(chan job),
	}
	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for j := range p.jobs {
		j.errs[j.idx] = execute(j)
		j.wg.Done()
	}
}

func execute(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if ctxErr := j.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return j.fn(j.ctx, j.idx)
}

// Run executes fn for i in [0, n) on the pool and waits for all of them.
// The returned slice is indexed like the tasks; a panicking task yields a *PanicError.
// Run must not be called from inside a task of the same pool.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		for i := range errs {
			errs[i] = ErrClosed
		}
		return errs
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		select {
		case p.jobs <- job{ctx: ctx, idx: i, fn: fn, errs: errs, wg: &wg}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			wg.Done()
		}
	}
	wg.Wait()
	return errs
}

// Close stops the workers after in-flight Run calls return.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
	p.workers.Wait()
}
