// Package metrics collects Prometheus metrics for list reconciliation.
//
// Every method is safe to call on a nil *Metrics, so components record
// unconditionally and metrics stay optional.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace("myapp"))
//	b, err := builder.New(w, sections, builder.WithMetrics(m))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/flix/pkg/diff"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "flix").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for reconciliation duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "flix",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the reconciliation collectors.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	opsTotal          *prometheus.CounterVec
	batchErrors       *prometheus.CounterVec
	generations       prometheus.Counter
	activeSources     prometheus.Gauge
	sourceErrors      prometheus.Counter
	sessions          prometheus.Gauge
	eventsTotal       *prometheus.CounterVec
	wsErrors          *prometheus.CounterVec
}

// New registers the collectors. Registering twice on the same registry
// panics, as with promauto.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		reconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconciliations_total",
			Help:        "Total number of snapshot reconciliations",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		reconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconciliation_duration_seconds",
			Help:        "Time to diff and apply one snapshot in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "ops_total",
			Help:        "Total number of edit operations applied, by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		batchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_errors_total",
			Help:        "Total number of failed reconciliations, by stage",
			ConstLabels: config.ConstLabels,
		}, []string{"stage"}),

		generations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "generations_total",
			Help:        "Total number of provider tree subscriptions",
			ConstLabels: config.ConstLabels,
		}),

		activeSources: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sources",
			Help:        "Number of subscribed provider streams",
			ConstLabels: config.ConstLabels,
		}),

		sourceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "source_errors_total",
			Help:        "Total number of provider streams that failed",
			ConstLabels: config.ConstLabels,
		}),

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected remote widgets",
			ConstLabels: config.ConstLabels,
		}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of widget events handled, by kind and status",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// ObserveReconcile records one reconciliation and the operations it applied.
// A nil script with a nil error records a reconciliation that changed nothing.
func (m *Metrics) ObserveReconcile(d time.Duration, s *diff.Script, err error) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(d.Seconds())
	if err != nil {
		m.reconcileTotal.WithLabelValues("error").Inc()
		return
	}
	m.reconcileTotal.WithLabelValues("ok").Inc()
	for kind, n := range s.Counts() {
		m.opsTotal.WithLabelValues(kind.String()).Add(float64(n))
	}
}

// RecordBatchError records a failed reconciliation stage: "validate",
// "diff" or "apply".
func (m *Metrics) RecordBatchError(stage string) {
	if m == nil {
		return
	}
	m.batchErrors.WithLabelValues(stage).Inc()
}

// RecordSubscribe records a new provider tree generation with n sources.
func (m *Metrics) RecordSubscribe(n int) {
	if m == nil {
		return
	}
	m.generations.Inc()
	m.activeSources.Add(float64(n))
}

// RecordRelease records n provider streams being released.
func (m *Metrics) RecordRelease(n int) {
	if m == nil {
		return
	}
	m.activeSources.Sub(float64(n))
}

// RecordSourceError records a failed provider stream.
func (m *Metrics) RecordSourceError() {
	if m == nil {
		return
	}
	m.sourceErrors.Inc()
}

// RecordSessionOpen records a connected remote widget.
func (m *Metrics) RecordSessionOpen() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// RecordSessionClose records a disconnected remote widget.
func (m *Metrics) RecordSessionClose() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// RecordEvent records a handled widget event.
func (m *Metrics) RecordEvent(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.eventsTotal.WithLabelValues(kind, status).Inc()
}

// RecordWebSocketError records a WebSocket error.
func (m *Metrics) RecordWebSocketError(errorType string) {
	if m == nil {
		return
	}
	m.wsErrors.WithLabelValues(errorType).Inc()
}
