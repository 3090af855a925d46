package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/metrics"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/pipeline"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/widget"
)

// ErrClosed is returned by operations on a closed Builder.
var ErrClosed = errors.New("builder: closed")

// DefaultSection is the identity of the section built by NewFromRows.
const DefaultSection = "flix"

const tracerName = "flix"

// Builder binds a provider tree to a widget.
type Builder struct {
	id        string
	widget    widget.Widget
	adapter   *widget.Adapter
	loop      *pipeline.Loop
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	animation widget.AnimationConfig
	queueSize int
	onApply   func(u *widget.Update, err error)

	cancel context.CancelFunc
	closed atomic.Bool

	// Owned by the loop goroutine
	displayed node.Snapshot
	seq       uint64
	sources   map[uint64]int
}

// New creates a builder showing sections in w. It returns a configuration
// error when two providers share an identity.
func New(w widget.Widget, sections []*provider.Section, opts ...Option) (*Builder, error) {
	reg, err := provider.Build(sections...)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		id:        uuid.NewString(),
		widget:    w,
		adapter:   widget.NewAdapter(),
		animation: widget.DefaultAnimation,
		sources:   make(map[uint64]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	b.logger = b.logger.With("builder_id", b.id)

	b.loop = pipeline.New(b.reconcile,
		pipeline.WithLogger(b.logger),
		pipeline.WithQueueSize(b.queueSize),
		pipeline.WithHooks(pipeline.Hooks{
			OnSubscribe: b.onSubscribe,
			OnRelease:   b.onRelease,
			OnSourceErr: func(uint64, string, error) { b.metrics.RecordSourceError() },
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.loop.Start(ctx)
	if err := b.loop.Replace(reg); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// NewFromRows creates a builder with a single section holding rows.
func NewFromRows(w widget.Widget, rows []provider.RowProvider, opts ...Option) (*Builder, error) {
	return New(w, []*provider.Section{provider.NewSection(DefaultSection, rows)}, opts...)
}

// ID returns the builder's unique ID.
func (b *Builder) ID() string {
	return b.id
}

// Adapter returns the widget callback adapter.
func (b *Builder) Adapter() *widget.Adapter {
	return b.adapter
}

// Snapshot returns the displayed snapshot.
func (b *Builder) Snapshot() node.Snapshot {
	return b.adapter.Snapshot()
}

// SetSections replaces the whole provider tree. The previous providers are
// released and the widget transitions to the new tree with a regular diff.
func (b *Builder) SetSections(sections ...*provider.Section) error {
	if b.closed.Load() {
		return ErrClosed
	}
	reg, err := provider.Build(sections...)
	if err != nil {
		return err
	}
	if err := b.loop.Replace(reg); err != nil {
		return ErrClosed
	}
	return nil
}

// SetRows replaces the tree with a single section holding rows.
func (b *Builder) SetRows(rows ...provider.RowProvider) error {
	return b.SetSections(provider.NewSection(DefaultSection, rows))
}

// Dispatch queues fn to run on the owner goroutine.
func (b *Builder) Dispatch(fn func()) error {
	if err := b.loop.Dispatch(fn); err != nil {
		return ErrClosed
	}
	return nil
}

// Do runs fn on the owner goroutine and returns its error. A panic in fn is
// recovered and returned as an error.
func (b *Builder) Do(ctx context.Context, fn func() error) error {
	var err error
	dispatchErr := b.loop.Do(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("callback panic",
					"panic", r,
					"stack", string(debug.Stack()))
				err = fmt.Errorf("builder: callback panic: %v", r)
			}
		}()
		err = fn()
	})
	if errors.Is(dispatchErr, pipeline.ErrClosed) {
		return ErrClosed
	}
	if dispatchErr != nil {
		return dispatchErr
	}
	return err
}

// Select runs the selection callback of the row at ip.
func (b *Builder) Select(ctx context.Context, ip node.IndexPath) error {
	return b.Do(ctx, func() error { return b.adapter.DidSelect(ip) })
}

// Delete runs the deletion callback of the row at ip.
func (b *Builder) Delete(ctx context.Context, ip node.IndexPath) error {
	return b.Do(ctx, func() error { return b.adapter.DidDelete(ip) })
}

// Action runs the handler of the index-th edit action of the row at ip.
func (b *Builder) Action(ctx context.Context, ip node.IndexPath, index int) error {
	return b.Do(ctx, func() error {
		actions, err := b.adapter.ActionsForRow(ip)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(actions) {
			return fmt.Errorf("builder: action %d of row %s: %w", index, ip, widget.ErrIndexOutOfRange)
		}
		if h := actions[index].Handler; h != nil {
			h(ip)
		}
		return nil
	})
}

// Close releases every provider subscription. No update reaches the widget
// after Close returns. Close is idempotent and may be called from a provider
// callback; the subscriptions are then released once the callback returns.
func (b *Builder) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		b.logger.Debug("builder closed")
	}
	b.loop.Close()
	b.cancel()
	return nil
}

// reconcile diffs a composed snapshot against the displayed one and applies
// the script. It runs on the owner goroutine.
func (b *Builder) reconcile(ctx context.Context, c pipeline.Composite) error {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "flix.reconcile",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("flix.builder_id", b.id),
			attribute.Int64("flix.generation", int64(c.Generation)),
			attribute.Int("flix.sections", c.Snapshot.Len()),
		),
	)
	defer span.End()

	script, err := diff.Diff(b.displayed, c.Snapshot)
	if err != nil {
		b.fail(span, "diff", start, err)
		return fmt.Errorf("builder: reconcile generation %d: %w", c.Generation, err)
	}
	span.SetAttributes(attribute.Int("flix.ops", script.Len()))

	if script.Empty() {
		// Nothing to show, but a new generation brings a new registry.
		b.adapter.Commit(b.seq, c.Snapshot, c.Registry)
		b.displayed = c.Snapshot
		b.metrics.ObserveReconcile(time.Since(start), script, nil)
		span.SetStatus(codes.Ok, "")
		return nil
	}

	u := &widget.Update{
		Seq:        b.seq + 1,
		Generation: c.Generation,
		Script:     script,
		Snapshot:   c.Snapshot,
		Animation:  b.animation,
	}
	span.SetAttributes(attribute.Int64("flix.seq", int64(u.Seq)))

	if err := b.widget.ApplyBatch(ctx, u); err != nil {
		b.fail(span, "apply", start, err)
		if b.onApply != nil {
			b.onApply(u, err)
		}
		return fmt.Errorf("builder: apply batch %d: %w", u.Seq, err)
	}

	b.seq = u.Seq
	b.displayed = c.Snapshot
	b.adapter.Commit(u.Seq, c.Snapshot, c.Registry)
	b.metrics.ObserveReconcile(time.Since(start), script, nil)
	span.SetStatus(codes.Ok, "")

	b.logger.Debug("batch applied",
		"seq", u.Seq,
		"generation", c.Generation,
		"ops", script.Len())
	if b.onApply != nil {
		b.onApply(u, nil)
	}
	return nil
}

func (b *Builder) fail(span trace.Span, stage string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	b.metrics.RecordBatchError(stage)
	b.metrics.ObserveReconcile(time.Since(start), nil, err)
}

func (b *Builder) onSubscribe(gen uint64, n int) {
	b.sources[gen] = n
	b.metrics.RecordSubscribe(n)
}

func (b *Builder) onRelease(gen uint64) {
	b.metrics.RecordRelease(b.sources[gen])
	delete(b.sources, gen)
}
