package events

import "sync"

// Bus forwards progress events from many producers to one consumer in the
// order they were accepted. Intake is unbounded so producers never wait on
// a slow consumer.
type Bus struct {
	out chan Event

	mu     sync.Mutex
	queue  []ProgressEvent
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// New starts a bus. buffer sizes the outbound channel.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	b := &Bus{
		out:    make(chan Event, buffer),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	defer close(b.done)
	defer close(b.out)
	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		closed := b.closed
		b.mu.Unlock()

		for _, ev := range batch {
			b.out <- ev.ToEvent()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-b.notify
	}
}

// Publish queues ev without blocking. It returns false once the bus is closed.
func (b *Bus) Publish(ev ProgressEvent) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.wake()
	return true
}

// Pending returns the number of accepted events not yet handed to the
// outbound channel.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Events returns the outbound stream. It is closed after Close once every
// accepted event was delivered.
func (b *Bus) Events() <-chan Event {
	return b.out
}

// Close stops intake. The consumer must keep reading Events until it closes.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wake()
}

// Done is closed when the outbound stream has been closed.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

func (b *Bus) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
