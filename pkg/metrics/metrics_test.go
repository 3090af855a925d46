package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserveReconcile(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	next := node.NewSnapshot(node.NewSection("s", nil, nil, nil,
		node.New("p", "a", 1),
		node.New("p", "b", 2),
	))
	script, err := diff.Diff(node.Snapshot{}, next)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	m.ObserveReconcile(time.Millisecond, script, nil)
	m.ObserveReconcile(time.Millisecond, nil, errors.New("boom"))

	if got := metricCounterValue(t, m.reconcileTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("reconciliations_total(ok)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.reconcileTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("reconciliations_total(error)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.opsTotal.WithLabelValues("InsertSection")); got != 1 {
		t.Fatalf("ops_total(InsertSection)=%v, want 1", got)
	}
	if got := metricHistogramCount(t, m.reconcileDuration); got != 2 {
		t.Fatalf("reconciliation_duration_seconds count=%v, want 2", got)
	}
}

func TestRecordFunctions(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))

	m.RecordSubscribe(3)
	m.RecordRelease(3)
	m.RecordSubscribe(2)
	m.RecordSourceError()
	m.RecordBatchError("apply")
	m.RecordSessionOpen()
	m.RecordSessionOpen()
	m.RecordSessionClose()
	m.RecordEvent("select", nil)
	m.RecordWebSocketError("close")

	if got := metricCounterValue(t, m.generations); got != 2 {
		t.Fatalf("generations_total=%v, want 2", got)
	}
	if got := metricGaugeValue(t, m.activeSources); got != 2 {
		t.Fatalf("active_sources=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.sourceErrors); got != 1 {
		t.Fatalf("source_errors_total=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.batchErrors.WithLabelValues("apply")); got != 1 {
		t.Fatalf("batch_errors_total(apply)=%v, want 1", got)
	}
	if got := metricGaugeValue(t, m.sessions); got != 1 {
		t.Fatalf("active_sessions=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.eventsTotal.WithLabelValues("select", "ok")); got != 1 {
		t.Fatalf("events_total(select,ok)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.wsErrors.WithLabelValues("close")); got != 1 {
		t.Fatalf("websocket_errors_total(close)=%v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveReconcile(time.Second, nil, nil)
	m.RecordBatchError("diff")
	m.RecordSubscribe(1)
	m.RecordRelease(1)
	m.RecordSourceError()
	m.RecordSessionOpen()
	m.RecordSessionClose()
	m.RecordEvent("select", nil)
	m.RecordWebSocketError("read")
}
