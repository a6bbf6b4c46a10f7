package marketdata

import "sync"

// Subscription is an explicit handle to a push stream. Events arrive on
// C in production order, with no gaps or duplicates while the
// subscription is healthy. Close is idempotent and synchronously removes
// the consumer from the fan-out set; the feed closes the channel itself
// when a consumer falls too far behind.
type Subscription[T any] struct {
	ch     chan T
	once   sync.Once
	cancel func()
}

// C returns the receive channel. It is closed on Close or when the
// subscriber is dropped for being slow.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close removes the subscription from the fan-out set. Safe to call
// multiple times and after the feed has already dropped the subscriber.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
}

// fanout delivers events to a set of subscribers. Delivery is
// non-blocking: a subscriber whose buffer is full is dropped (its
// channel closed) rather than ever seeing events out of order.
type fanout[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan T
}

func newFanout[T any]() *fanout[T] {
	return &fanout[T]{subs: make(map[int]chan T)}
}

func (f *fanout[T]) subscribe(buffer int) *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan T, buffer)
	f.subs[id] = ch

	return &Subscription[T]{
		ch:     ch,
		cancel: func() { f.drop(id) },
	}
}

func (f *fanout[T]) drop(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

func (f *fanout[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		select {
		case ch <- v:
		default:
			// Slow consumer: drop it rather than block or reorder.
			delete(f.subs, id)
			close(ch)
		}
	}
}

func (f *fanout[T]) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
