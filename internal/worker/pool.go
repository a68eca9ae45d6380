// Package worker runs per-message tasks on a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("worker pool closed")

type task struct {
	fn   func()
	done chan struct{}
}

// Pool executes submitted tasks on a fixed number of workers fed by a
// bounded queue. Close stops intake and waits for queued and running tasks.
type Pool struct {
	tasks     chan task
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewPool starts workerCount workers with room for queueSize pending tasks.
func NewPool(workerCount, queueSize int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks: make(chan task, queueSize),
		done:  make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p
}

// Submit queues fn, blocking while the queue is full. The returned channel
// closes once fn has returned.
func (p *Pool) Submit(ctx context.Context, fn func()) (<-chan struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case p.tasks <- t:
		return t.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting tasks and waits until every queued task has run or
// ctx expires. It is safe to call more than once.
func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t task) {
	defer close(t.done)
	t.fn()
}
