package demo

import (
	"context"
	"testing"
	"time"

	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/widget"
)

func button(t *testing.T, s node.Snapshot) (Button, bool) {
	t.Helper()
	n, ok := s.At(LoginPath)
	if !ok {
		return Button{}, false
	}
	b, ok := n.Value.(Button)
	return b, ok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func enabled(t *testing.T, rec *widget.Recorder, want bool) func() bool {
	return func() bool {
		b, ok := button(t, rec.Displayed())
		return ok && b.Enabled == want
	}
}

func newLoginBuilder(t *testing.T) (*Login, *builder.Builder, *widget.Recorder) {
	t.Helper()
	l := NewLogin()
	rec := widget.NewRecorder()
	b, err := builder.New(rec, Sections(l))
	if err != nil {
		t.Fatalf("builder.New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return l, b, rec
}

func TestLoginLayout(t *testing.T) {
	_, b, rec := newLoginBuilder(t)
	waitFor(t, "first batch", enabled(t, rec, false))

	snap := rec.Displayed()
	if snap.Len() != 2 {
		t.Fatalf("sections = %d, want 2", snap.Len())
	}
	if got := snap.RowCount(0); got != 2 {
		t.Errorf("input rows = %d, want 2", got)
	}
	first := rec.Updates()[0]
	if got := first.Script.Count(diff.InsertSection); got != 2 {
		t.Errorf("InsertSection ops = %d, want 2", got)
	}

	a := b.Adapter()
	waitFor(t, "adapter commit", func() bool { return a.NumberOfSections() == 2 })

	h, ok, err := a.HeightForFooter(0)
	if err != nil || !ok || h != FooterHeight {
		t.Errorf("HeightForFooter(0) = %v, %v, %v, want %v, true, nil", h, ok, err, FooterHeight)
	}
	h, ok, err = a.HeightForRow(node.IndexPath{Section: 0, Row: 1})
	if err != nil || !ok || h != FieldHeight {
		t.Errorf("HeightForRow(0,1) = %v, %v, %v, want %v, true, nil", h, ok, err, FieldHeight)
	}
	if has, _ := a.HasFooter(1); has {
		t.Error("login section has a footer")
	}
	if can, err := a.CanEditRow(LoginPath); err != nil || can {
		t.Errorf("CanEditRow(login) = %v, %v, want false, nil", can, err)
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	l, b, rec := newLoginBuilder(t)
	ctx := context.Background()
	waitFor(t, "first batch", enabled(t, rec, false))

	if err := b.Select(ctx, LoginPath); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := l.Logins(); len(got) != 0 {
		t.Errorf("Logins() = %v before inputs, want none", got)
	}

	l.Username.Set("dianqk")
	l.Password.Set("secret")
	waitFor(t, "enabled login row", enabled(t, rec, true))

	last := rec.Last()
	if got := last.Script.Count(diff.ReloadRow); got != 1 {
		t.Errorf("ReloadRow ops = %d, want 1:\n%s", got, last.Script)
	}

	var accepted []string
	l.OnLogin(func(user string) { accepted = append(accepted, user) })
	if err := b.Select(ctx, LoginPath); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := l.Logins(); len(got) != 1 || got[0] != "dianqk" {
		t.Errorf("Logins() = %v, want [dianqk]", got)
	}
	if len(accepted) != 1 {
		t.Errorf("OnLogin calls = %d, want 1", len(accepted))
	}

	l.Password.Set("")
	waitFor(t, "disabled login row", enabled(t, rec, false))
	if err := b.Select(ctx, LoginPath); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := l.Logins(); len(got) != 1 {
		t.Errorf("Logins() = %v after clearing password, want one", got)
	}
}

func TestSteps(t *testing.T) {
	l, b, rec := newLoginBuilder(t)
	ctx := context.Background()
	waitFor(t, "first batch", enabled(t, rec, false))

	for _, step := range Steps() {
		if err := step.Do(ctx, l, b); err != nil {
			t.Fatalf("step %q: %v", step.Name, err)
		}
		if step.Name == "type password" {
			waitFor(t, "enabled login row", enabled(t, rec, true))
		}
		if step.Name == "clear password" {
			waitFor(t, "disabled login row", enabled(t, rec, false))
		}
	}
	if got := l.Logins(); len(got) != 1 {
		t.Errorf("Logins() = %v, want one accepted login", got)
	}
}
