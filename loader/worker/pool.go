package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrQueueFull  = errors.New("worker queue full")
)

// Handler processes one queued value. It is owned by a single worker.
type Handler[T any] func(T)

// Pool runs a fixed set of long-lived workers over one bounded intake queue.
type Pool[T any] struct {
	tasks  chan T
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	size   int
}

// New starts size workers. factory is called once per worker to build the
// handler it uses for its whole life.
func New[T any](size, queueSize int, factory func(workerID int) Handler[T]) *Pool[T] {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size * 8
	}

	p := &Pool[T]{
		tasks: make(chan T, queueSize),
		size:  size,
	}

	for i := 0; i < size; i++ {
		handle := factory(i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				handle(task)
			}
		}()
	}

	return p
}

// TrySubmit enqueues v without blocking.
func (p *Pool[T]) TrySubmit(v T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain removes and returns every queued value that no worker has taken yet.
func (p *Pool[T]) Drain() []T {
	var drained []T
	for {
		select {
		case v, ok := <-p.tasks:
			if !ok {
				return drained
			}
			drained = append(drained, v)
		default:
			return drained
		}
	}
}

// Shutdown stops intake and waits for queued and in-flight values until ctx is done.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Size returns the worker count.
func (p *Pool[T]) Size() int {
	return p.size
}

// Pending returns the number of queued values.
func (p *Pool[T]) Pending() int {
	return len(p.tasks)
}
