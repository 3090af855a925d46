package pipeline

import (
	"context"

	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/provider"
)

// update is one source emission crossing into the loop goroutine.
type update struct {
	gen   uint64
	slot  int
	value any // []node.Node for row slots, *node.Node for part slots
	err   error
	done  bool
}

// slot is one subscribed provider stream.
type slot struct {
	identity string
	rows     provider.RowProvider
	part     provider.PartProvider
}

// sectionSlots maps a section to its slot indices.
type sectionSlots struct {
	section *provider.Section
	rows    []int
	header  int // -1 when the section has no header provider
	footer  int // -1 when the section has no footer provider
}

// generation is one subscription of a provider tree.
type generation struct {
	id       uint64
	reg      *provider.Registry
	ctx      context.Context
	cancel   context.CancelFunc
	released bool

	slots    []slot
	sections []sectionSlots

	values  []any
	has     []bool
	missing int
}

func newGeneration(id uint64, reg *provider.Registry, ctx context.Context, cancel context.CancelFunc) *generation {
	g := &generation{id: id, reg: reg, ctx: ctx, cancel: cancel}
	if reg != nil {
		for _, sec := range reg.Sections() {
			ss := sectionSlots{section: sec, header: -1, footer: -1}
			for _, rp := range sec.Rows() {
				ss.rows = append(ss.rows, len(g.slots))
				g.slots = append(g.slots, slot{identity: rp.Identity(), rows: rp})
			}
			if h := sec.Header(); h != nil {
				ss.header = len(g.slots)
				g.slots = append(g.slots, slot{identity: h.Identity(), part: h})
			}
			if f := sec.Footer(); f != nil {
				ss.footer = len(g.slots)
				g.slots = append(g.slots, slot{identity: f.Identity(), part: f})
			}
			g.sections = append(g.sections, ss)
		}
	}
	g.values = make([]any, len(g.slots))
	g.has = make([]bool, len(g.slots))
	g.missing = len(g.slots)
	return g
}

// set stores the latest value of a slot and reports whether every slot has
// emitted at least once.
func (g *generation) set(i int, v any) bool {
	if !g.has[i] {
		g.has[i] = true
		g.missing--
	}
	g.values[i] = v
	return g.missing == 0
}

// compose builds the snapshot from the latest slot values.
func (g *generation) compose() node.Snapshot {
	sections := make([]node.Section, 0, len(g.sections))
	for _, ss := range g.sections {
		rows := make([][]node.Node, len(ss.rows))
		for j, i := range ss.rows {
			rows[j], _ = g.values[i].([]node.Node)
		}
		sec, ok := ss.section.Compose(rows, g.part(ss.header), g.part(ss.footer))
		if ok {
			sections = append(sections, sec)
		}
	}
	return node.NewSnapshot(sections...)
}

func (g *generation) part(i int) *node.Node {
	if i < 0 {
		return nil
	}
	n, _ := g.values[i].(*node.Node)
	return n
}
