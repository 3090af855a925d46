package stream

import (
	"context"
	"sync"
)

// CombineLatest emits the latest value of every source each time any source
// emits, once all sources have emitted at least once. It completes when every
// source has completed.
func CombineLatest[T any](sources ...*Stream[T]) *Stream[[]T] {
	return &Stream[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			return newCombineIter(ctx, sources)
		},
	}
}

// CombineLatest2 combines two differently typed streams with fn.
func CombineLatest2[A, B, R any](a *Stream[A], b *Stream[B], fn func(A, B) R) *Stream[R] {
	left := Map(a, func(v A) any { return v })
	right := Map(b, func(v B) any { return v })
	return Map(CombineLatest(left, right), func(vs []any) R {
		return fn(vs[0].(A), vs[1].(B))
	})
}

type indexed[T any] struct {
	index int
	val   T
	err   error
	done  bool
}

type combineIter[T any] struct {
	ch      chan indexed[T]
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	iters   []Iterator[T]
	latest  []T
	has     []bool
	missing int
	live    int
	closed  bool
}

func newCombineIter[T any](ctx context.Context, sources []*Stream[T]) *combineIter[T] {
	cctx, cancel := context.WithCancel(ctx)
	it := &combineIter[T]{
		ch:      make(chan indexed[T], len(sources)),
		cancel:  cancel,
		iters:   make([]Iterator[T], len(sources)),
		latest:  make([]T, len(sources)),
		has:     make([]bool, len(sources)),
		missing: len(sources),
		live:    len(sources),
	}

	for i, s := range sources {
		it.iters[i] = s.Iter(cctx)
		it.wg.Add(1)
		go func(i int, src Iterator[T]) {
			defer it.wg.Done()
			for {
				v, ok, err := src.Next(cctx)
				if err != nil || !ok {
					select {
					case it.ch <- indexed[T]{index: i, err: err, done: true}:
					case <-cctx.Done():
					}
					return
				}
				select {
				case it.ch <- indexed[T]{index: i, val: v}:
				case <-cctx.Done():
					return
				}
			}
		}(i, it.iters[i])
	}
	return it
}

func (it *combineIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	for {
		if it.closed || it.live == 0 {
			return nil, false, nil
		}
		select {
		case r := <-it.ch:
			if r.done {
				it.live--
				if r.err != nil {
					return nil, false, r.err
				}
				// A source that completes without a value can never
				// contribute, so nothing more can be emitted.
				if !it.has[r.index] {
					return nil, false, nil
				}
				continue
			}
			if !it.has[r.index] {
				it.has[r.index] = true
				it.missing--
			}
			it.latest[r.index] = r.val
			if it.missing == 0 {
				out := make([]T, len(it.latest))
				copy(out, it.latest)
				return out, true, nil
			}
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

func (it *combineIter[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.cancel()
	it.wg.Wait()
	var firstErr error
	for _, src := range it.iters {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
