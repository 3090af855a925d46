package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/stream"
)

// ErrClosed is returned by operations on a closed Loop.
var ErrClosed = errors.New("pipeline: loop closed")

// Composite is one fully composed snapshot.
type Composite struct {
	Snapshot   node.Snapshot
	Registry   *provider.Registry // Registry the snapshot was composed from
	Generation uint64             // Provider tree generation
	Seq        uint64             // Composition sequence number, starting at 1
}

// Sink receives composites on the loop goroutine.
type Sink func(ctx context.Context, c Composite) error

// Hooks observe subscription lifecycle. All hooks are optional.
type Hooks struct {
	OnSubscribe func(generation uint64, sources int)
	OnRelease   func(generation uint64)
	OnSourceErr func(generation uint64, identity string, err error)
}

// Loop is the single owner of snapshot composition.
type Loop struct {
	sink   Sink
	logger *slog.Logger
	hooks  Hooks

	updates    chan update
	dispatchCh chan func()
	replaceCh  chan struct{} // capacity 1, signals pending
	done       chan struct{}
	stopped    chan struct{}

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	owner     atomic.Uint64 // goroutine id of run

	mu      sync.Mutex
	pending *provider.Registry // latest unsubscribed tree
	replace bool

	sources sync.WaitGroup // every source goroutine of every generation
	active  atomic.Int64

	// Owned by the loop goroutine
	ctx context.Context
	gen *generation
	seq uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithQueueSize sets the capacity of the update and dispatch queues.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.updates = make(chan update, n)
			l.dispatchCh = make(chan func(), n)
		}
	}
}

// WithHooks sets lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(l *Loop) { l.hooks = h }
}

// New creates a Loop delivering composites to sink.
func New(sink Sink, opts ...Option) *Loop {
	l := &Loop{
		sink:       sink,
		logger:     slog.Default(),
		updates:    make(chan update, 64),
		dispatchCh: make(chan func(), 64),
		replaceCh:  make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the loop goroutine. Source subscriptions derive from ctx.
// Calling Start more than once has no effect.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	l.ctx = ctx
	go l.run()
}

// Replace schedules a switch to the providers of reg, releasing the
// previous generation. It never blocks, so it is safe to call from the loop
// goroutine. Replacements not yet picked up by the loop collapse into the
// latest one.
func (l *Loop) Replace(reg *provider.Registry) error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.mu.Lock()
	l.pending = reg
	l.replace = true
	l.mu.Unlock()

	select {
	case l.replaceCh <- struct{}{}:
	default:
	}
	return nil
}

// Dispatch queues fn to run on the loop goroutine.
func (l *Loop) Dispatch(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	select {
	case l.dispatchCh <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Dispatch(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop, releases every subscription exactly once and waits
// for all source goroutines to exit. No sink call happens after Close
// returns. Close is idempotent.
//
// Called from the loop goroutine, from a dispatched function or the sink,
// Close does not wait: the loop releases the subscriptions once the caller
// returns to it.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	if l.onLoop() {
		return
	}
	if l.started.Load() {
		<-l.stopped
	}
	l.sources.Wait()
}

// Done returns a channel that's closed when the loop is closing.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// ActiveSources returns the number of running source goroutines.
func (l *Loop) ActiveSources() int {
	return int(l.active.Load())
}

// onLoop reports whether the caller runs on the loop goroutine.
func (l *Loop) onLoop() bool {
	id := l.owner.Load()
	return id != 0 && id == goid()
}

// goid returns the id of the calling goroutine from its stack header,
// "goroutine N [running]:".
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// run is the event loop.
func (l *Loop) run() {
	l.owner.Store(goid())
	defer close(l.stopped)
	defer l.release()

	for {
		if l.closed.Load() {
			return
		}
		select {
		case u := <-l.updates:
			l.handleUpdate(u)

		case fn := <-l.dispatchCh:
			l.execute(fn)

		case <-l.replaceCh:
			l.mu.Lock()
			reg, ok := l.pending, l.replace
			l.pending, l.replace = nil, false
			l.mu.Unlock()
			if ok {
				l.subscribe(reg)
			}

		case <-l.done:
			return
		}
	}
}

// execute runs a dispatched function with panic recovery.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// emit composes the current snapshot and delivers it to the sink.
func (l *Loop) emit() {
	if l.closed.Load() {
		return
	}
	g := l.gen
	snap := g.compose()
	l.seq++
	c := Composite{
		Snapshot:   snap,
		Registry:   g.reg,
		Generation: g.id,
		Seq:        l.seq,
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("sink panic",
				"panic", r,
				"generation", g.id,
				"seq", c.Seq,
				"stack", string(debug.Stack()))
		}
	}()
	if err := l.sink(g.ctx, c); err != nil {
		l.logger.Error("sink failed", "generation", g.id, "seq", c.Seq, "error", err)
	}
}

// handleUpdate records a source emission and recomposes when every slot
// has a value.
func (l *Loop) handleUpdate(u update) {
	g := l.gen
	if g == nil || u.gen != g.id {
		return // stale generation
	}

	if u.done {
		if u.err != nil && !errors.Is(u.err, context.Canceled) {
			l.logger.Warn("provider stream failed",
				"generation", g.id,
				"provider", g.slots[u.slot].identity,
				"error", u.err)
			if l.hooks.OnSourceErr != nil {
				l.hooks.OnSourceErr(g.id, g.slots[u.slot].identity, u.err)
			}
		}
		return
	}

	if !g.set(u.slot, u.value) {
		return
	}
	l.emit()
}

// subscribe releases the current generation and starts a new one.
func (l *Loop) subscribe(reg *provider.Registry) {
	l.release()

	var id uint64 = 1
	if l.gen != nil {
		id = l.gen.id + 1
	}
	ctx, cancel := context.WithCancel(l.ctx)
	g := newGeneration(id, reg, ctx, cancel)
	l.gen = g

	for i, s := range g.slots {
		switch {
		case s.rows != nil:
			l.startSource(g, i, s.rows.Nodes())
		case s.part != nil:
			l.startPartSource(g, i, s.part.Node())
		}
	}

	l.logger.Debug("subscribed", "generation", id, "sections", len(g.sections), "sources", len(g.slots))
	if l.hooks.OnSubscribe != nil {
		l.hooks.OnSubscribe(id, len(g.slots))
	}

	// A tree without providers is complete immediately.
	if g.missing == 0 {
		l.emit()
	}
}

// release cancels the current generation. Each generation is cancelled
// exactly once; its source goroutines close their own iterators.
func (l *Loop) release() {
	g := l.gen
	if g == nil || g.released {
		return
	}
	g.released = true
	g.cancel()
	l.logger.Debug("released", "generation", g.id)
	if l.hooks.OnRelease != nil {
		l.hooks.OnRelease(g.id)
	}
}

func (l *Loop) startSource(g *generation, slot int, s *stream.Stream[[]node.Node]) {
	l.sources.Add(1)
	l.active.Add(1)
	go forward(l, g, slot, s.Iter(g.ctx), func(v []node.Node) any { return v })
}

func (l *Loop) startPartSource(g *generation, slot int, s *stream.Stream[*node.Node]) {
	l.sources.Add(1)
	l.active.Add(1)
	go forward(l, g, slot, s.Iter(g.ctx), func(v *node.Node) any { return v })
}

// forward pulls one provider iterator and hands its values to the loop.
// It owns the iterator and closes it exactly once on exit.
func forward[T any](l *Loop, g *generation, slot int, it stream.Iterator[T], box func(T) any) {
	defer l.sources.Done()
	defer l.active.Add(-1)
	defer it.Close()

	for {
		v, ok, err := it.Next(g.ctx)
		if err != nil || !ok {
			if g.ctx.Err() != nil {
				return
			}
			select {
			case l.updates <- update{gen: g.id, slot: slot, err: err, done: true}:
			case <-g.ctx.Done():
			}
			return
		}
		select {
		case l.updates <- update{gen: g.id, slot: slot, value: box(v)}:
		case <-g.ctx.Done():
			return
		}
	}
}
