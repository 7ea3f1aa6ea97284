package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolConcurrencyLimit(t *testing.T) {
	var current int32
	var max int32

	pool := New(2, 8, func(int) Handler[int] {
		return func(int) {
			val := atomic.AddInt32(&current, 1)
			for {
				prev := atomic.LoadInt32(&max)
				if val <= prev {
					break
				}
				if atomic.CompareAndSwapInt32(&max, prev, val) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		}
	})

	for i := 0; i < 4; i++ {
		if err := pool.TrySubmit(i); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	_ = pool.Shutdown(context.Background())
	if max > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", max)
	}
}

func TestPoolFactoryCalledOncePerWorker(t *testing.T) {
	var mu sync.Mutex
	ids := map[int]int{}

	pool := New(3, 4, func(id int) Handler[string] {
		mu.Lock()
		ids[id]++
		mu.Unlock()
		return func(string) {}
	})
	for i := 0; i < 4; i++ {
		_ = pool.TrySubmit("x")
	}
	_ = pool.Shutdown(context.Background())

	if len(ids) != 3 {
		t.Fatalf("expected 3 handlers, got %d", len(ids))
	}
	for id, n := range ids {
		if n != 1 {
			t.Fatalf("worker %d built %d handlers", id, n)
		}
	}
}

func TestPoolQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pool := New(1, 1, func(int) Handler[int] {
		return func(int) {
			started <- struct{}{}
			<-release
		}
	})
	defer func() {
		close(release)
		_ = pool.Shutdown(context.Background())
	}()

	if err := pool.TrySubmit(1); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	<-started
	if err := pool.TrySubmit(2); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := pool.TrySubmit(3); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if pool.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", pool.Pending())
	}
}

func TestPoolDrain(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var handled int32
	pool := New(1, 4, func(int) Handler[int] {
		return func(int) {
			atomic.AddInt32(&handled, 1)
			started <- struct{}{}
			<-release
		}
	})

	_ = pool.TrySubmit(1)
	<-started
	_ = pool.TrySubmit(2)
	_ = pool.TrySubmit(3)

	drained := pool.Drain()
	if len(drained) != 2 || drained[0] != 2 || drained[1] != 3 {
		t.Fatalf("unexpected drained values %v", drained)
	}

	close(release)
	_ = pool.Shutdown(context.Background())
	if got := atomic.LoadInt32(&handled); got != 1 {
		t.Fatalf("expected 1 handled value, got %d", got)
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool := New(1, 1, func(int) Handler[int] { return func(int) {} })
	_ = pool.Shutdown(context.Background())
	if err := pool.TrySubmit(1); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolShutdownContextTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	pool := New(1, 1, func(int) Handler[int] {
		return func(int) { <-release }
	})
	_ = pool.TrySubmit(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}
