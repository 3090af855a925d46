package stream

import (
	"context"
	"reflect"
	"sync"
)

// Var is a mutable value whose changes can be observed as a stream.
// Each iterator first yields the current value, then the latest value after
// every change. Sets that happen between two pulls collapse into one value.
type Var[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{} // closed and replaced on every change
	equal   func(T, T) bool
}

// NewVar creates a Var holding initial.
func NewVar[T any](initial T) *Var[T] {
	return &Var[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// WithEquals sets the equality used to suppress no-op updates.
func (v *Var[T]) WithEquals(fn func(T, T) bool) *Var[T] {
	v.mu.Lock()
	v.equal = fn
	v.mu.Unlock()
	return v
}

// Get returns the current value.
func (v *Var[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores value and wakes observers if it differs from the current one.
func (v *Var[T]) Set(value T) {
	v.Update(func(T) T { return value })
}

// Update atomically replaces the value with fn(current).
func (v *Var[T]) Update(fn func(T) T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := fn(v.value)
	if v.equals(v.value, next) {
		return
	}
	v.value = next
	v.version++
	close(v.changed)
	v.changed = make(chan struct{})
}

// Stream returns a stream of the current value followed by every change.
func (v *Var[T]) Stream() *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return &varIter[T]{v: v, done: make(chan struct{})}
		},
	}
}

func (v *Var[T]) equals(a, b T) bool {
	if v.equal != nil {
		return v.equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

type varIter[T any] struct {
	v       *Var[T]
	started bool
	seen    uint64
	done    chan struct{}
	once    sync.Once
}

func (it *varIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		select {
		case <-it.done:
			return zero, false, nil
		default:
		}

		it.v.mu.RLock()
		value, version, changed := it.v.value, it.v.version, it.v.changed
		it.v.mu.RUnlock()

		if !it.started || version != it.seen {
			it.started = true
			it.seen = version
			return value, true, nil
		}

		select {
		case <-changed:
		case <-it.done:
			return zero, false, nil
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

func (it *varIter[T]) Close() error {
	it.once.Do(func() { close(it.done) })
	return nil
}
