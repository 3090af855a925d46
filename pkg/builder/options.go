package builder

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/flix/pkg/metrics"
	"github.com/vango-dev/flix/pkg/widget"
)

// Option configures a Builder.
type Option func(*Builder)

// WithAnimation sets the animations attached to every update.
func WithAnimation(a widget.AnimationConfig) Option {
	return func(b *Builder) {
		b.animation = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithTracer sets the tracer used for reconciliation spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Builder) {
		b.tracer = t
	}
}

// WithQueueSize sets the pipeline queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Builder) {
		b.queueSize = n
	}
}

// WithOnApply registers a hook called on the owner goroutine after every
// reconciliation attempt that reached the widget. Hooks from repeated
// options run in registration order.
func WithOnApply(fn func(u *widget.Update, err error)) Option {
	return func(b *Builder) {
		if fn == nil {
			return
		}
		prev := b.onApply
		if prev == nil {
			b.onApply = fn
			return
		}
		b.onApply = func(u *widget.Update, err error) {
			prev(u, err)
			fn(u, err)
		}
	}
}
