package diff

import (
	"fmt"

	"github.com/vango-dev/flix/pkg/node"
)

// Diff compares two snapshots and returns the edit script that transforms
// prev into next. An empty prev describes a first render.
//
// Both snapshots are validated first; a duplicate section or row identity is
// returned as a *node.DuplicateKeyError.
func Diff(prev, next node.Snapshot) (*Script, error) {
	if err := prev.Validate(); err != nil {
		return nil, fmt.Errorf("diff: previous snapshot: %w", err)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("diff: next snapshot: %w", err)
	}

	s := &Script{}
	diffSections(prev.Sections, next.Sections, s)
	return s, nil
}

// pair links a surviving item's old and new positions.
type pair struct {
	prev, next int
}

// match indexes both sides by identity and returns the survivors in new
// order, plus the removed old positions and the added new positions.
func match(prevIDs, nextIDs []node.ID) (survivors []pair, removed, added []int) {
	prevIndex := make(map[node.ID]int, len(prevIDs))
	for i, id := range prevIDs {
		prevIndex[id] = i
	}
	nextIndex := make(map[node.ID]int, len(nextIDs))
	for i, id := range nextIDs {
		nextIndex[id] = i
	}

	// Descending so later deletes do not shift earlier ones
	for i := len(prevIDs) - 1; i >= 0; i-- {
		if _, ok := nextIndex[prevIDs[i]]; !ok {
			removed = append(removed, i)
		}
	}
	for j, id := range nextIDs {
		if i, ok := prevIndex[id]; ok {
			survivors = append(survivors, pair{prev: i, next: j})
		} else {
			added = append(added, j)
		}
	}
	return survivors, removed, added
}

// moved returns which survivors must be moved.
func moved(survivors []pair) []bool {
	seq := make([]int, len(survivors))
	for k, p := range survivors {
		seq[k] = p.prev
	}
	keep := stablePositions(seq)
	out := make([]bool, len(survivors))
	for k := range keep {
		out[k] = !keep[k]
	}
	return out
}

// diffSections emits section-level operations, then recurses into the rows
// of every surviving section.
func diffSections(prev, next []node.Section, s *Script) {
	prevIDs := make([]node.ID, len(prev))
	for i, sec := range prev {
		prevIDs[i] = sec.ID()
	}
	nextIDs := make([]node.ID, len(next))
	for i, sec := range next {
		nextIDs[i] = sec.ID()
	}

	survivors, removed, added := match(prevIDs, nextIDs)

	for _, i := range removed {
		s.Ops = append(s.Ops, Op{
			Kind: DeleteSection,
			From: sectionPath(i),
			To:   none,
		})
	}

	for _, j := range added {
		sec := next[j].Clone()
		s.Ops = append(s.Ops, Op{
			Kind:    InsertSection,
			From:    none,
			To:      sectionPath(j),
			Section: &sec,
		})
	}

	for k, m := range moved(survivors) {
		if !m {
			continue
		}
		p := survivors[k]
		s.Ops = append(s.Ops, Op{
			Kind: MoveSection,
			From: sectionPath(p.prev),
			To:   sectionPath(p.next),
		})
	}

	// A header or footer that appears or disappears changes the section's
	// registered view contract: the whole section is reloaded and its rows
	// are not diffed individually.
	reloaded := make([]bool, len(survivors))
	for k, p := range survivors {
		if !partsPresenceChanged(prev[p.prev], next[p.next]) {
			continue
		}
		reloaded[k] = true
		sec := next[p.next].Clone()
		s.Ops = append(s.Ops, Op{
			Kind:    ReloadSection,
			From:    sectionPath(p.prev),
			To:      sectionPath(p.next),
			Section: &sec,
		})
	}

	for k, p := range survivors {
		if reloaded[k] {
			continue
		}
		diffRows(p, prev[p.prev].Rows, next[p.next].Rows, s)
	}

	for k, p := range survivors {
		if reloaded[k] {
			continue
		}
		diffParts(p, prev[p.prev], next[p.next], s)
	}
}

// diffRows emits row-level operations for one surviving section.
func diffRows(sec pair, prev, next []node.Node, s *Script) {
	prevIDs := make([]node.ID, len(prev))
	for i, n := range prev {
		prevIDs[i] = n.ID()
	}
	nextIDs := make([]node.ID, len(next))
	for i, n := range next {
		nextIDs[i] = n.ID()
	}

	survivors, removed, added := match(prevIDs, nextIDs)

	for _, i := range removed {
		s.Ops = append(s.Ops, Op{
			Kind: DeleteRow,
			From: node.IndexPath{Section: sec.prev, Row: i},
			To:   none,
		})
	}

	for _, j := range added {
		n := next[j]
		s.Ops = append(s.Ops, Op{
			Kind: InsertRow,
			From: none,
			To:   node.IndexPath{Section: sec.next, Row: j},
			Node: &n,
		})
	}

	for k, m := range moved(survivors) {
		if !m {
			continue
		}
		p := survivors[k]
		s.Ops = append(s.Ops, Op{
			Kind: MoveRow,
			From: node.IndexPath{Section: sec.prev, Row: p.prev},
			To:   node.IndexPath{Section: sec.next, Row: p.next},
		})
	}

	for _, p := range survivors {
		if prev[p.prev].Equal(next[p.next]) {
			continue
		}
		n := next[p.next]
		s.Ops = append(s.Ops, Op{
			Kind: ReloadRow,
			From: node.IndexPath{Section: sec.prev, Row: p.prev},
			To:   node.IndexPath{Section: sec.next, Row: p.next},
			Node: &n,
		})
	}
}

// diffParts emits in-place reloads for headers and footers present on both
// sides whose value, or whose section descriptor, changed. A descriptor
// change is carried as a Section holding only the new descriptor.
func diffParts(sec pair, prev, next node.Section, s *Script) {
	var descriptor *node.Section
	if !prev.Node.Equal(next.Node) {
		descriptor = &node.Section{Node: next.Node}
	}
	descriptorChanged := descriptor != nil
	for _, part := range []node.Part{node.PartHeader, node.PartFooter} {
		before, after := prev.Part(part), next.Part(part)
		if before == nil || after == nil {
			continue
		}
		if !descriptorChanged && before.Equal(*after) {
			continue
		}
		n := *after
		s.Ops = append(s.Ops, Op{
			Kind:    ReloadPart,
			From:    sectionPath(sec.prev),
			To:      sectionPath(sec.next),
			Part:    part,
			Node:    &n,
			Section: descriptor,
		})
	}
}

// partsPresenceChanged reports whether a header or footer appeared or
// disappeared.
func partsPresenceChanged(prev, next node.Section) bool {
	return (prev.Header == nil) != (next.Header == nil) ||
		(prev.Footer == nil) != (next.Footer == nil)
}

func sectionPath(i int) node.IndexPath {
	return node.SectionPath(i)
}
