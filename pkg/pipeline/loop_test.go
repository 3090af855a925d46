package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/stream"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collector() (Sink, <-chan Composite) {
	ch := make(chan Composite, 64)
	return func(_ context.Context, c Composite) error {
		ch <- c
		return nil
	}, ch
}

func receive(t *testing.T, ch <-chan Composite) Composite {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for composite")
		return Composite{}
	}
}

func expectNone(t *testing.T, ch <-chan Composite) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected composite seq=%d: %v", c.Seq, c.Snapshot.Shapes())
	case <-time.After(50 * time.Millisecond):
	}
}

func mustBuild(t *testing.T, sections ...*provider.Section) *provider.Registry {
	t.Helper()
	reg, err := provider.Build(sections...)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return reg
}

func rowKeys(snap node.Snapshot, section int) []string {
	var keys []string
	for _, n := range snap.Sections[section].Rows {
		keys = append(keys, n.Key)
	}
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func startLoop(t *testing.T, sink Sink) *Loop {
	t.Helper()
	l := New(sink, WithLogger(quietLogger()))
	l.Start(context.Background())
	t.Cleanup(l.Close)
	return l
}

func TestLoopWaitsForEverySource(t *testing.T) {
	sink, out := collector()
	l := startLoop(t, sink)

	headers := make(chan *string, 1)
	items := stream.NewVar([]string{"a", "b"})
	reg := mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", items.Stream(), nil)},
		provider.WithHeader(provider.NewHeader[string]("title", stream.FromChan[*string](headers))),
	))
	if err := l.Replace(reg); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	expectNone(t, out)

	title := "Contacts"
	headers <- &title
	c := receive(t, out)
	if c.Seq != 1 || c.Generation != 1 {
		t.Errorf("Seq, Generation = %d, %d, want 1, 1", c.Seq, c.Generation)
	}
	if got := rowKeys(c.Snapshot, 0); !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("rows = %v, want [a b]", got)
	}
	if h := c.Snapshot.Sections[0].Header; h == nil || h.Value != "Contacts" {
		t.Errorf("header = %v, want Contacts", h)
	}
	if c.Registry != reg {
		t.Error("composite registry does not match replaced registry")
	}
}

func TestLoopEmitsInOrder(t *testing.T) {
	sink, out := collector()
	l := startLoop(t, sink)

	items := stream.NewVar([]string{"a"})
	reg := mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", items.Stream(), nil)},
	))
	l.Replace(reg)
	receive(t, out)

	want := [][]string{
		{"a", "b"},
		{"b"},
		{"c", "b", "a"},
	}
	for i, next := range want {
		items.Set(next)
		c := receive(t, out)
		if c.Seq != uint64(i+2) {
			t.Errorf("Seq = %d, want %d", c.Seq, i+2)
		}
		if got := rowKeys(c.Snapshot, 0); !equalStrings(got, next) {
			t.Errorf("rows = %v, want %v", got, next)
		}
	}
}

func TestLoopEmptyTreeEmitsImmediately(t *testing.T) {
	sink, out := collector()
	l := startLoop(t, sink)

	l.Replace(mustBuild(t))
	c := receive(t, out)
	if c.Snapshot.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Snapshot.Len())
	}

	l.Replace(mustBuild(t, provider.NewSection("static", nil)))
	c = receive(t, out)
	if c.Snapshot.Len() != 1 || c.Generation != 2 {
		t.Errorf("Len(), Generation = %d, %d, want 1, 2", c.Snapshot.Len(), c.Generation)
	}
}

func TestLoopHidesEmptySection(t *testing.T) {
	sink, out := collector()
	l := startLoop(t, sink)

	items := stream.NewVar([]string{})
	reg := mustBuild(t,
		provider.NewSection("hidden",
			[]provider.RowProvider{provider.NewRows[string]("items", items.Stream(), nil)},
			provider.HideWhenEmpty()),
		provider.NewSection("visible", nil),
	)
	l.Replace(reg)

	c := receive(t, out)
	if c.Snapshot.Len() != 1 || c.Snapshot.Sections[0].Key != "visible" {
		t.Fatalf("sections = %v, want [visible]", c.Snapshot.Shapes())
	}

	items.Set([]string{"x"})
	c = receive(t, out)
	if c.Snapshot.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Snapshot.Len())
	}
}

func TestLoopReplaceReleasesPreviousGeneration(t *testing.T) {
	var released []uint64
	releasedCh := make(chan uint64, 4)
	sink, out := collector()
	l := New(sink, WithLogger(quietLogger()), WithHooks(Hooks{
		OnRelease: func(gen uint64) { releasedCh <- gen },
	}))
	l.Start(context.Background())
	defer l.Close()

	old := stream.NewVar([]string{"old"})
	l.Replace(mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", old.Stream(), nil)})))
	receive(t, out)

	fresh := stream.NewVar([]string{"new"})
	l.Replace(mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", fresh.Stream(), nil)})))
	c := receive(t, out)
	if got := rowKeys(c.Snapshot, 0); !equalStrings(got, []string{"new"}) {
		t.Fatalf("rows = %v, want [new]", got)
	}

	select {
	case gen := <-releasedCh:
		released = append(released, gen)
	case <-time.After(time.Second):
		t.Fatal("generation 1 was not released")
	}
	if released[0] != 1 {
		t.Errorf("released = %v, want [1]", released)
	}

	old.Set([]string{"stale"})
	expectNone(t, out)

	deadline := time.Now().Add(time.Second)
	for l.ActiveSources() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := l.ActiveSources(); n != 1 {
		t.Errorf("ActiveSources() = %d, want 1", n)
	}
}

func TestLoopCloseReleasesEverything(t *testing.T) {
	sink, out := collector()
	l := New(sink, WithLogger(quietLogger()))
	l.Start(context.Background())

	a := stream.NewVar([]string{"a"})
	b := stream.NewVar([]string{"b"})
	l.Replace(mustBuild(t, provider.NewSection("main", []provider.RowProvider{
		provider.NewRows[string]("a", a.Stream(), nil),
		provider.NewRows[string]("b", b.Stream(), nil),
	})))
	receive(t, out)

	l.Close()
	l.Close()

	if n := l.ActiveSources(); n != 0 {
		t.Errorf("ActiveSources() = %d, want 0", n)
	}
	if err := l.Replace(mustBuild(t)); !errors.Is(err, ErrClosed) {
		t.Errorf("Replace() error = %v, want ErrClosed", err)
	}
	if err := l.Dispatch(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch() error = %v, want ErrClosed", err)
	}
	a.Set([]string{"late"})
	expectNone(t, out)
}

func TestLoopRecoversSinkPanic(t *testing.T) {
	out := make(chan Composite, 8)
	l := startLoop(t, func(_ context.Context, c Composite) error {
		if equalStrings(rowKeys(c.Snapshot, 0), []string{"a"}) {
			panic("boom")
		}
		out <- c
		return nil
	})

	items := stream.NewVar([]string{"a"})
	l.Replace(mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", items.Stream(), nil)})))

	items.Set([]string{"b"})
	c := receive(t, out)
	if got := rowKeys(c.Snapshot, 0); !equalStrings(got, []string{"b"}) {
		t.Errorf("rows = %v, want [b]", got)
	}
}

func TestLoopDoRunsOnLoop(t *testing.T) {
	sink, _ := collector()
	l := startLoop(t, sink)

	ran := false
	if err := l.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !ran {
		t.Error("Do() returned before fn ran")
	}

	// A panicking dispatch does not stop the loop.
	l.Dispatch(func() { panic("boom") })
	if err := l.Do(context.Background(), func() {}); err != nil {
		t.Errorf("Do() after panic error = %v", err)
	}
}

func TestLoopReportsSourceErrors(t *testing.T) {
	errCh := make(chan error, 1)
	sink, out := collector()
	l := New(sink, WithLogger(quietLogger()), WithHooks(Hooks{
		OnSourceErr: func(_ uint64, _ string, err error) { errCh <- err },
	}))
	l.Start(context.Background())
	defer l.Close()

	boom := errors.New("boom")
	failing := stream.FromFunc(func(context.Context) stream.Iterator[[]string] {
		return &failIter{first: []string{"a"}, err: boom}
	})
	l.Replace(mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", failing, nil)})))

	c := receive(t, out)
	if got := rowKeys(c.Snapshot, 0); !equalStrings(got, []string{"a"}) {
		t.Errorf("rows = %v, want [a]", got)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Errorf("source error = %v, want boom", err)
		}
	case <-time.After(time.Second):
		t.Fatal("source error not reported")
	}
}

type failIter struct {
	first []string
	sent  bool
	err   error
}

func (it *failIter) Next(context.Context) ([]string, bool, error) {
	if !it.sent {
		it.sent = true
		return it.first, true, nil
	}
	return nil, false, it.err
}

func (it *failIter) Close() error { return nil }

func TestLoopCloseFromLoopGoroutine(t *testing.T) {
	sink, out := collector()
	l := New(sink, WithLogger(quietLogger()))
	l.Start(context.Background())

	items := stream.NewVar([]string{"a"})
	l.Replace(mustBuild(t, provider.NewSection("main",
		[]provider.RowProvider{provider.NewRows[string]("items", items.Stream(), nil)})))
	receive(t, out)

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		l.Do(context.Background(), func() { l.Close() })
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Close on the loop goroutine blocked")
	}

	// A second Close from outside waits for the release.
	l.Close()
	if n := l.ActiveSources(); n != 0 {
		t.Errorf("ActiveSources() = %d, want 0", n)
	}
	items.Set([]string{"late"})
	expectNone(t, out)
}
