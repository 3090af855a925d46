package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/stream"
)

type contact struct {
	ID   string
	Name string
}

func first[T any](t *testing.T, s *stream.Stream[T]) T {
	t.Helper()
	it := s.Iter(context.Background())
	defer it.Close()
	v, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v", ok, err)
	}
	return v
}

func TestRowNodes(t *testing.T) {
	r := NewStaticRow("login", true)
	nodes := first(t, r.Nodes())
	if len(nodes) != 1 || nodes[0] != node.Unique("login", true) {
		t.Errorf("Nodes() = %v, want one unique login node", nodes)
	}

	hidden := NewRow[bool]("hidden", stream.Just[*bool](nil))
	if nodes := first(t, hidden.Nodes()); len(nodes) != 0 {
		t.Errorf("Nodes() = %v, want none for a nil value", nodes)
	}
}

func TestRowsNodes(t *testing.T) {
	values := stream.Just([]contact{{"1", "Ann"}, {"2", "Bob"}})
	r := NewRows("contacts", values, func(c contact) string { return c.ID })

	nodes := first(t, r.Nodes())
	want := []node.Node{
		node.New("contacts", "1", contact{"1", "Ann"}),
		node.New("contacts", "2", contact{"2", "Bob"}),
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("Nodes() = %v, want %v", nodes, want)
	}

	byKeyOf := NewRows("tags", stream.Just([]string{"go", "ui"}), nil)
	if nodes := first(t, byKeyOf.Nodes()); nodes[1].Key != "ui" {
		t.Errorf("default key = %q, want ui", nodes[1].Key)
	}
}

func TestPartNode(t *testing.T) {
	title := "Account"
	h := NewHeader("title", stream.Just(&title))
	if h.Part() != node.PartHeader {
		t.Errorf("Part() = %v, want header", h.Part())
	}
	n := first(t, h.Node())
	if n == nil || n.Value != "Account" || n.Provider != "title" {
		t.Errorf("Node() = %v", n)
	}

	f := NewFooter[string]("note", stream.Just[*string](nil))
	if f.Part() != node.PartFooter {
		t.Errorf("Part() = %v, want footer", f.Part())
	}
	if n := first(t, f.Node()); n != nil {
		t.Errorf("Node() = %v, want nil", n)
	}
}

func TestRegistryDuplicateIdentity(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewStaticRow("a", 1)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := r.Register(NewStaticRow("a", 2))
	var dup *DuplicateIdentityError
	if !errors.As(err, &dup) || dup.Identity != "a" || dup.Kind != "row" {
		t.Fatalf("Register() error = %v, want duplicate row a", err)
	}
	if dup.Code() != "F001" {
		t.Errorf("Code() = %s, want F001", dup.Code())
	}

	title := "x"
	err = r.Register(NewHeader("a", stream.Just(&title)))
	if !errors.As(err, &dup) || dup.Kind != "header" {
		t.Errorf("Register(header) error = %v, want duplicate header", err)
	}
}

func TestRegistryRegisterSectionsIsAtomic(t *testing.T) {
	r := NewRegistry()
	s1 := NewSection("s1", []RowProvider{NewStaticRow("a", 1)})
	s2 := NewSection("s2", []RowProvider{NewStaticRow("b", 1), NewStaticRow("a", 2)})

	if err := r.RegisterSections(s1, s2); err == nil {
		t.Fatal("RegisterSections() should fail on duplicate row identity")
	}
	if r.Len() != 0 || len(r.Sections()) != 0 {
		t.Errorf("registry changed after failed registration: %v", r.Identities())
	}

	if _, err := Build(s1, NewSection("s1", nil)); err == nil {
		t.Error("Build() should fail on duplicate section identity")
	}
}

func TestRegistryResolve(t *testing.T) {
	note := "n"
	reg, err := Build(NewSection("s",
		[]RowProvider{NewStaticRow("row", 1)},
		WithFooter(NewFooter("note", stream.Just(&note))),
	))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := reg.Identities(); !reflect.DeepEqual(got, []string{"note", "row"}) {
		t.Errorf("Identities() = %v", got)
	}
	if p, err := reg.Resolve("note"); err != nil || p.Identity() != "note" {
		t.Errorf("Resolve(note) = %v, %v", p, err)
	}

	_, err = reg.Resolve("missing")
	var unresolved *UnresolvedIdentityError
	if !errors.As(err, &unresolved) || unresolved.Code() != "F002" {
		t.Errorf("Resolve(missing) error = %v", err)
	}

	defer func() {
		r := recover()
		if _, ok := r.(*UnresolvedIdentityError); !ok {
			t.Errorf("MustResolve panic = %v, want *UnresolvedIdentityError", r)
		}
	}()
	reg.MustResolve("missing")
}

func TestRegistryUnsupportedProvider(t *testing.T) {
	err := NewRegistry().Register(NewSection("s", nil))
	var unsupported *UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Errorf("Register(section) error = %v, want *UnsupportedProviderError", err)
	}
}

func TestRegistryDispatch(t *testing.T) {
	var selected, deleted []string
	contacts := NewRows("contacts", stream.Just([]contact{}), func(c contact) string { return c.ID },
		WithHeight(func(_ node.IndexPath, c contact) float64 { return 60 }),
		WithConfigure(func(view any, _ node.IndexPath, c contact) error {
			*view.(*string) = c.Name
			return nil
		}),
		WithSelect(func(_ node.IndexPath, c contact) { selected = append(selected, c.ID) }),
		WithDelete(func(_ node.IndexPath, c contact) { deleted = append(deleted, c.ID) }),
		WithActions(func(_ node.IndexPath, c contact) []Action {
			return []Action{{Title: "Call " + c.Name}}
		}),
	)
	plain := NewStaticRow("plain", 0)

	reg, err := Build(NewSection("s", []RowProvider{contacts, plain}))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ip := node.IndexPath{Section: 0, Row: 0}
	ann := node.New("contacts", "1", contact{"1", "Ann"})

	if h, ok, err := reg.Height(ip, ann); err != nil || !ok || h != 60 {
		t.Errorf("Height() = %v, %v, %v; want 60", h, ok, err)
	}
	var view string
	if err := reg.Configure(&view, ip, ann); err != nil || view != "Ann" {
		t.Errorf("Configure() view = %q, err = %v", view, err)
	}
	if err := reg.Select(ip, ann); err != nil || !reflect.DeepEqual(selected, []string{"1"}) {
		t.Errorf("Select() selected = %v, err = %v", selected, err)
	}
	if err := reg.Delete(ip, ann); err != nil || !reflect.DeepEqual(deleted, []string{"1"}) {
		t.Errorf("Delete() deleted = %v, err = %v", deleted, err)
	}
	if ok, err := reg.CanEdit(ip, ann); err != nil || !ok {
		t.Errorf("CanEdit() = %v, %v; want true", ok, err)
	}
	if actions, err := reg.Actions(ip, ann); err != nil || len(actions) != 1 || actions[0].Title != "Call Ann" {
		t.Errorf("Actions() = %v, %v", actions, err)
	}

	// Missing capabilities fall back to defaults.
	p := node.Unique("plain", 0)
	if _, ok, err := reg.Height(ip, p); ok || err != nil {
		t.Errorf("Height(plain) ok = %v, err = %v; want default", ok, err)
	}
	if ok, _ := reg.CanEdit(ip, p); ok {
		t.Error("CanEdit(plain) = true, want false")
	}
	if actions, _ := reg.Actions(ip, p); actions != nil {
		t.Errorf("Actions(plain) = %v, want nil", actions)
	}
	if err := reg.Select(ip, p); err != nil {
		t.Errorf("Select(plain) error = %v", err)
	}
}

func TestRegistryDispatchTypeMismatch(t *testing.T) {
	r := NewStaticRow("flag", true, WithHeight(func(_ node.IndexPath, v bool) float64 { return 1 }))
	reg, _ := Build(NewSection("s", []RowProvider{r}))

	_, _, err := reg.Height(node.IndexPath{}, node.Unique("flag", "not a bool"))
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Height() error = %v, want *TypeMismatchError", err)
	}
	if mismatch.Want != "bool" || mismatch.Got != "string" || mismatch.Code() != "F004" {
		t.Errorf("TypeMismatchError = %+v", mismatch)
	}

	_, err = reg.CanEdit(node.IndexPath{}, node.Unique("flag", nil))
	if !errors.As(err, &mismatch) || mismatch.Got != "nil" {
		t.Errorf("CanEdit() error = %v, want mismatch with nil", err)
	}

	_, _, err = reg.Height(node.IndexPath{}, node.Unique("ghost", true))
	var unresolved *UnresolvedIdentityError
	if !errors.As(err, &unresolved) {
		t.Errorf("Height(ghost) error = %v, want *UnresolvedIdentityError", err)
	}
}

func TestSectionCompose(t *testing.T) {
	s := NewSection("s", nil, WithDescriptor("d"), HideWhenEmpty())
	if _, ok := s.Compose(nil, nil, nil); ok {
		t.Error("Compose() ok = true for an empty hidden section")
	}

	rows := [][]node.Node{
		{node.Unique("a", 1)},
		nil,
		{node.New("b", "1", 2), node.New("b", "2", 3)},
	}
	sec, ok := s.Compose(rows, nil, nil)
	if !ok {
		t.Fatal("Compose() ok = false")
	}
	if sec.ID() != (node.ID{Provider: "s", Key: "s"}) || sec.Value != "d" {
		t.Errorf("section node = %v", sec.Node)
	}
	if len(sec.Rows) != 3 || sec.Rows[2].Key != "2" {
		t.Errorf("rows = %v", sec.Rows)
	}

	always := NewSection("t", nil)
	if _, ok := always.Compose(nil, nil, nil); !ok {
		t.Error("Compose() ok = false for a visible empty section")
	}
}
