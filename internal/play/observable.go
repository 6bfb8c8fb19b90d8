package play

import "sync"

type subscription[T comparable] struct {
	id int
	fn func(T)
}

// Observable holds a value and notifies subscribers when it changes.
// Set only fires on an actual change; transitions that must be re-asserted
// with an unchanged value (the forced turn transition) go through explicit
// calls instead of this type.
type Observable[T comparable] struct {
	mu     sync.Mutex
	value  T
	subs   []subscription[T]
	nextID int
}

func NewObservable[T comparable](initial T) *Observable[T] {
	return &Observable[T]{value: initial}
}

func (o *Observable[T]) Value() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set stores v and notifies subscribers when v differs from the current
// value.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	if o.value == v {
		o.mu.Unlock()
		return
	}
	o.value = v
	subs := make([]subscription[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn for future changes and returns a cancel func.
func (o *Observable[T]) Subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscription[T]{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				break
			}
		}
	}
}

// SubscribeWithCurrent fires fn immediately with the current value, then on
// every change.
func (o *Observable[T]) SubscribeWithCurrent(fn func(T)) (cancel func()) {
	o.mu.Lock()
	current := o.value
	o.mu.Unlock()
	fn(current)
	return o.Subscribe(fn)
}
