package settings

import "sync"

// Observable holds a value and fans out every change to subscribers. Each
// subscriber sees the latest value; intermediate values may be skipped when
// it falls behind.
type Observable[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]chan T
	next  int
	equal func(a, b T) bool
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial, subs: make(map[int]chan T)}
}

// NewComparable skips Set calls that do not change the value.
func NewComparable[T comparable](initial T) *Observable[T] {
	o := NewObservable(initial)
	o.equal = func(a, b T) bool { return a == b }
	return o
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

func (o *Observable[T]) Set(value T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.equal != nil && o.equal(o.value, value) {
		return
	}
	o.value = value
	for _, ch := range o.subs {
		offerLatest(ch, value)
	}
}

// Subscribe returns a channel primed with the current value. The returned
// func unsubscribes and closes the channel.
func (o *Observable[T]) Subscribe() (<-chan T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.next
	o.next++
	ch := make(chan T, 1)
	ch <- o.value
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
}

func offerLatest[T any](ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
