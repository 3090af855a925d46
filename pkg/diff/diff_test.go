package diff

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/vango-dev/flix/pkg/node"
)

func row(key string, value any) node.Node {
	return node.New("rows", key, value)
}

func section(id string, rows ...node.Node) node.Section {
	return node.NewSection(id, nil, nil, nil, rows...)
}

func snap(sections ...node.Section) node.Snapshot {
	return node.NewSnapshot(sections...)
}

func mustDiff(t *testing.T, prev, next node.Snapshot) *Script {
	t.Helper()
	s, err := Diff(prev, next)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	return s
}

func assertOps(t *testing.T, s *Script, want ...string) {
	t.Helper()
	got := make([]string, len(s.Ops))
	for i, op := range s.Ops {
		got[i] = op.String()
	}
	if len(want) == 0 {
		want = []string{}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ops = %q, want %q", got, want)
	}
}

func TestDiffPureInsert(t *testing.T) {
	prev := snap(section("A", row("r1", 0), row("r2", 0)))
	next := snap(section("A", row("r1", 0), row("r2", 0), row("r3", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "InsertRow (0,2)")
	if s.Ops[0].Node == nil || s.Ops[0].Node.Key != "r3" {
		t.Errorf("InsertRow node = %v, want r3", s.Ops[0].Node)
	}
}

func TestDiffReorder(t *testing.T) {
	prev := snap(section("A", row("r1", 0), row("r2", 0)))
	next := snap(section("A", row("r2", 0), row("r1", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "MoveRow (0,0)->(0,1)")
}

func TestDiffValueChangeOnly(t *testing.T) {
	prev := snap(section("A", row("r1", false)))
	next := snap(section("A", row("r1", true)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "ReloadRow (0,0)->(0,0)")
	if got := s.Ops[0].Node.Value; got != true {
		t.Errorf("ReloadRow value = %v, want true", got)
	}
}

func TestDiffSectionRemoval(t *testing.T) {
	prev := snap(section("A", row("r1", 0)), section("B", row("r2", 0)))
	next := snap(section("A", row("r1", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "DeleteSection 1")
}

func TestDiffHeaderAppears(t *testing.T) {
	h := node.Unique("title", "Inbox")
	prev := snap(section("A", row("r1", 0)))
	next := snap(node.NewSection("A", nil, &h, nil, row("r1", 0), row("r2", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "ReloadSection 0->0")
	if s.Ops[0].Section == nil || s.Ops[0].Section.Header == nil {
		t.Fatal("ReloadSection should carry the new section with its header")
	}
	if s.Count(InsertRow) != 0 {
		t.Error("rows of a reloaded section should not be diffed")
	}
}

func TestDiffFooterDisappears(t *testing.T) {
	f := node.Unique("footer", 35)
	prev := snap(node.NewSection("A", nil, nil, &f))
	next := snap(section("A"))

	assertOps(t, mustDiff(t, prev, next), "ReloadSection 0->0")
}

func TestDiffHeaderValueChange(t *testing.T) {
	h1 := node.Unique("title", "Inbox")
	h2 := node.Unique("title", "Inbox (3)")
	prev := snap(node.NewSection("A", nil, &h1, nil, row("r1", 0)))
	next := snap(node.NewSection("A", nil, &h2, nil, row("r1", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "ReloadPart header 0->0")
	if s.Ops[0].Node.Value != "Inbox (3)" {
		t.Errorf("ReloadPart value = %v", s.Ops[0].Node.Value)
	}
}

func TestDiffDescriptorChangeReloadsParts(t *testing.T) {
	h := node.Unique("title", "T")
	f := node.Unique("note", "N")
	prev := snap(node.NewSection("A", 1, &h, &f))
	next := snap(node.NewSection("A", 2, &h, &f))

	script := mustDiff(t, prev, next)
	assertOps(t, script, "ReloadPart header 0->0", "ReloadPart footer 0->0")
	for _, op := range script.Ops {
		if op.Section == nil || op.Section.Node.Value != 2 {
			t.Errorf("%s descriptor = %v, want 2", op, op.Section)
		}
	}
	got, err := Apply(prev, script)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if v := got.Sections[0].Node.Value; v != 2 {
		t.Errorf("Apply() descriptor = %v, want 2", v)
	}
	if !got.Equal(next) {
		t.Errorf("Apply() = %v, want %v", got, next)
	}

	// Without parts a descriptor change has nothing to reconfigure.
	assertOps(t, mustDiff(t, snap(node.NewSection("B", 1, nil, nil)), snap(node.NewSection("B", 2, nil, nil))))
}

func TestDiffFirstRender(t *testing.T) {
	next := snap(section("A", row("r1", 0)), section("B"))

	s := mustDiff(t, node.Snapshot{}, next)
	assertOps(t, s, "InsertSection 0", "InsertSection 1")
	if len(s.Ops[0].Section.Rows) != 1 {
		t.Error("InsertSection should carry the section rows")
	}
}

func TestDiffDeletesDescendingInsertsAscending(t *testing.T) {
	prev := snap(section("A", row("a", 0), row("b", 0), row("c", 0), row("d", 0)))
	next := snap(section("A", row("x", 0), row("b", 0), row("y", 0), row("d", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s,
		"DeleteRow (0,2)",
		"DeleteRow (0,0)",
		"InsertRow (0,0)",
		"InsertRow (0,2)",
	)
}

func TestDiffFrontInsertHasNoMoves(t *testing.T) {
	prev := snap(section("A", row("r1", 0), row("r2", 0), row("r3", 0)))
	next := snap(section("A", row("r0", 0), row("r1", 0), row("r2", 0), row("r3", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "InsertRow (0,0)")
}

func TestDiffMovedAndChanged(t *testing.T) {
	prev := snap(section("A", row("r1", 1), row("r2", 1)))
	next := snap(section("A", row("r2", 1), row("r1", 2)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "MoveRow (0,0)->(0,1)", "ReloadRow (0,0)->(0,1)")
	if s.Count(DeleteRow)+s.Count(InsertRow) != 0 {
		t.Error("a changed row must never be deleted and reinserted")
	}
}

func TestDiffSectionMoveKeepsRows(t *testing.T) {
	prev := snap(section("A", row("a", 0)), section("B", row("b", 0)), section("C"))
	next := snap(section("C"), section("A", row("a", 0)), section("B", row("b", 0), row("b2", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "MoveSection 2->0", "InsertRow (2,1)")
}

func TestDiffRowChangingSectionIsDeleteInsert(t *testing.T) {
	prev := snap(section("A", row("x", 0)), section("B"))
	next := snap(section("A"), section("B", row("x", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "DeleteRow (0,0)", "InsertRow (1,0)")
}

func TestDiffDuplicateKeyFailsFast(t *testing.T) {
	next := snap(section("A", row("r1", 0), row("r1", 1)))

	_, err := Diff(node.Snapshot{}, next)
	var dke *node.DuplicateKeyError
	if !errors.As(err, &dke) {
		t.Fatalf("Diff() error = %v, want *node.DuplicateKeyError", err)
	}
	if dke.ID.Key != "r1" {
		t.Errorf("DuplicateKeyError.ID = %v, want r1", dke.ID)
	}
}

func TestDiffSameKeyDifferentProviders(t *testing.T) {
	prev := snap(section("A", node.New("p1", "k", 0)))
	next := snap(section("A", node.New("p2", "k", 0)))

	s := mustDiff(t, prev, next)
	assertOps(t, s, "DeleteRow (0,0)", "InsertRow (0,0)")
}

func TestStablePositions(t *testing.T) {
	tests := []struct {
		seq  []int
		want []bool
	}{
		{nil, []bool{}},
		{[]int{0, 1, 2}, []bool{true, true, true}},
		{[]int{1, 0}, []bool{true, false}},
		{[]int{2, 1, 0}, []bool{true, false, false}},
		{[]int{3, 0, 1, 2}, []bool{false, true, true, true}},
		{[]int{1, 2, 3, 0}, []bool{true, true, true, false}},
	}
	for _, tt := range tests {
		got := stablePositions(tt.seq)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("stablePositions(%v) = %v, want %v", tt.seq, got, tt.want)
		}
	}
}

// randomSnapshot builds a snapshot from a shared key pool so that successive
// snapshots overlap.
func randomSnapshot(r *rand.Rand) node.Snapshot {
	var sections []node.Section
	for _, sid := range r.Perm(5) {
		if r.Intn(4) == 0 {
			continue
		}
		var header *node.Node
		if r.Intn(3) == 0 {
			h := node.Unique("h", r.Intn(2))
			header = &h
		}
		var rows []node.Node
		for _, k := range r.Perm(8) {
			if r.Intn(3) == 0 {
				continue
			}
			rows = append(rows, row(fmt.Sprintf("r%d", k), r.Intn(2)))
		}
		sections = append(sections, node.NewSection(fmt.Sprintf("s%d", sid), r.Intn(2), header, nil, rows...))
	}
	return node.NewSnapshot(sections...)
}

func TestDiffIdempotence(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		s := randomSnapshot(r)
		if script := mustDiff(t, s, s.Clone()); !script.Empty() {
			t.Fatalf("Diff(s, s) = %s, want empty", script)
		}
	}
}

func TestDiffStructuralCompleteness(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		prev, next := randomSnapshot(r), randomSnapshot(r)
		script := mustDiff(t, prev, next)

		got, err := Apply(prev, script)
		if err != nil {
			t.Fatalf("Apply() error = %v\nscript:\n%s", err, script)
		}
		if !reflect.DeepEqual(got.Shapes(), next.Shapes()) {
			t.Fatalf("Apply() shapes = %v, want %v\nscript:\n%s", got.Shapes(), next.Shapes(), script)
		}
		if !got.Equal(next) {
			t.Fatalf("Apply() = %v, want %v\nscript:\n%s", got, next, script)
		}
	}
}

func TestDiffReloadsExactlyChangedRows(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		prev, next := randomSnapshot(r), randomSnapshot(r)
		script := mustDiff(t, prev, next)

		reloadedSections := map[int]bool{}
		for _, op := range script.Filter(ReloadSection) {
			reloadedSections[op.From.Section] = true
		}
		reloads := map[node.IndexPath]int{}
		for _, op := range script.Filter(ReloadRow) {
			reloads[op.From]++
		}

		nextSections := map[node.ID]node.Section{}
		for _, sec := range next.Sections {
			nextSections[sec.ID()] = sec
		}
		for si, sec := range prev.Sections {
			ns, ok := nextSections[sec.ID()]
			if !ok || reloadedSections[si] {
				continue
			}
			nextRows := map[node.ID]node.Node{}
			for _, n := range ns.Rows {
				nextRows[n.ID()] = n
			}
			for ri, n := range sec.Rows {
				m, ok := nextRows[n.ID()]
				if !ok {
					continue
				}
				path := node.IndexPath{Section: si, Row: ri}
				want := 0
				if !n.Equal(m) {
					want = 1
				}
				if reloads[path] != want {
					t.Fatalf("reloads at %s = %d, want %d\nscript:\n%s", path, reloads[path], want, script)
				}
			}
		}
	}
}

func TestApplyRejectsMismatchedScript(t *testing.T) {
	prev := snap(section("A", row("r1", 0)))
	bad := &Script{Ops: []Op{{Kind: DeleteRow, From: node.IndexPath{Section: 0, Row: 3}, To: none}}}

	if _, err := Apply(prev, bad); !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("Apply() error = %v, want ErrScriptMismatch", err)
	}

	overlap := &Script{Ops: []Op{
		{Kind: MoveSection, From: sectionPath(0), To: sectionPath(0)},
		{Kind: DeleteSection, From: sectionPath(0), To: none},
	}}
	if _, err := Apply(prev, overlap); !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("Apply() error = %v, want ErrScriptMismatch", err)
	}
}

func TestScriptHelpers(t *testing.T) {
	var nilScript *Script
	if !nilScript.Empty() || nilScript.Len() != 0 || nilScript.Count(InsertRow) != 0 {
		t.Error("nil script should be empty")
	}

	s := &Script{Ops: []Op{
		{Kind: InsertRow, To: node.IndexPath{Section: 0, Row: 1}},
		{Kind: InsertRow, To: node.IndexPath{Section: 0, Row: 2}},
		{Kind: DeleteSection, From: sectionPath(3)},
	}}
	if s.Count(InsertRow) != 2 {
		t.Errorf("Count(InsertRow) = %d, want 2", s.Count(InsertRow))
	}
	if got := s.Counts()[DeleteSection]; got != 1 {
		t.Errorf("Counts()[DeleteSection] = %d, want 1", got)
	}
	if got := len(s.Filter(DeleteSection, InsertRow)); got != 3 {
		t.Errorf("Filter() len = %d, want 3", got)
	}
	if s.String() != "InsertRow (0,1)\nInsertRow (0,2)\nDeleteSection 3" {
		t.Errorf("String() = %q", s.String())
	}
	if !DeleteSection.IsSection() || InsertRow.IsSection() {
		t.Error("IsSection() classification wrong")
	}
}
