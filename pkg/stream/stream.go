package stream

import (
	"context"
	"sync"
)

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Stream is a lazy, possibly infinite source of values.
type Stream[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Iter starts a new iteration. The caller must Close the iterator.
func (s *Stream[T]) Iter(ctx context.Context) Iterator[T] {
	return s.create(ctx)
}

// FromFunc creates a stream from an iterator factory.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Stream[T] {
	return &Stream[T]{create: fn}
}

// Just creates a stream that yields v once.
func Just[T any](v T) *Stream[T] {
	return FromSlice([]T{v})
}

// FromSlice creates a stream that yields each item in order.
func FromSlice[T any](items []T) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// FromChan creates a stream that yields values received from ch until it is
// closed. Every iteration reads from the same channel.
func FromChan[T any](ch <-chan T) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return &chanIter[T]{ch: ch, done: make(chan struct{})}
		},
	}
}

// Never creates a stream that yields nothing and blocks until cancelled.
func Never[T any]() *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[T] {
			return &chanIter[T]{done: make(chan struct{})}
		},
	}
}

// Map transforms every value of s.
func Map[T, U any](s *Stream[T], fn func(T) U) *Stream[U] {
	return &Stream[U]{
		create: func(ctx context.Context) Iterator[U] {
			return &mapIter[T, U]{source: s.create(ctx), fn: fn}
		},
	}
}

// Collect drains a finite stream into a slice.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	it := s.Iter(ctx)
	defer it.Close()
	var out []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	v := it.items[it.index]
	it.index++
	return v, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type chanIter[T any] struct {
	ch   <-chan T // nil blocks forever
	done chan struct{}
	once sync.Once
}

func (it *chanIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case <-it.done:
		return zero, false, nil
	default:
	}
	select {
	case v, open := <-it.ch:
		if !open {
			return zero, false, nil
		}
		return v, true, nil
	case <-it.done:
		return zero, false, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *chanIter[T]) Close() error {
	it.once.Do(func() { close(it.done) })
	return nil
}

type mapIter[T, U any] struct {
	source Iterator[T]
	fn     func(T) U
}

func (it *mapIter[T, U]) Next(ctx context.Context) (U, bool, error) {
	v, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero U
		return zero, ok, err
	}
	return it.fn(v), true, nil
}

func (it *mapIter[T, U]) Close() error { return it.source.Close() }
