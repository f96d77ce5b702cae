package session

import "sync"

// bus delivers events one at a time in the order they were enqueued. The
// goroutine that finds the bus idle drains it; re-entrant publishes from an
// observer only enqueue.
type bus struct {
	mu        sync.Mutex
	queue     []Event
	draining  bool
	nextID    int
	observers map[int]Observer
	order     []int
}

func newBus() *bus {
	return &bus{observers: make(map[int]Observer)}
}

func (b *bus) subscribe(o Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.observers[id] = o
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// enqueue must be called while the session lock is held so queue order
// matches commit order.
func (b *bus) enqueue(events ...Event) {
	b.mu.Lock()
	b.queue = append(b.queue, events...)
	b.mu.Unlock()
}

// drain must be called without the session lock held.
func (b *bus) drain() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		observers := make([]Observer, 0, len(b.order))
		for _, id := range b.order {
			observers = append(observers, b.observers[id])
		}
		b.mu.Unlock()

		for _, o := range observers {
			o(ev)
		}

		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}
