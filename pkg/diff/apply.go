package diff

import (
	"errors"
	"fmt"

	"github.com/vango-dev/flix/pkg/node"
)

// ErrScriptMismatch is returned when a script does not fit the snapshot it
// is applied to.
var ErrScriptMismatch = errors.New("diff: script does not match snapshot")

// Apply replays a script on prev and returns the resulting snapshot.
// prev is not modified.
func Apply(prev node.Snapshot, s *Script) (node.Snapshot, error) {
	if s.Empty() {
		return prev.Clone(), nil
	}

	var (
		deleted  = map[int]bool{}
		moves    = map[int]int{} // old -> new
		inserted = map[int]*node.Section{}
		reloads  = map[int]*node.Section{} // old -> content
		rowOps   = map[int][]Op{}          // keyed by old section
		parts    []Op
	)

	for _, op := range s.Ops {
		switch op.Kind {
		case DeleteSection:
			if !inRange(op.From.Section, len(prev.Sections)) {
				return node.Snapshot{}, mismatch(op)
			}
			deleted[op.From.Section] = true
		case InsertSection:
			if op.Section == nil {
				return node.Snapshot{}, mismatch(op)
			}
			inserted[op.To.Section] = op.Section
		case MoveSection:
			if !inRange(op.From.Section, len(prev.Sections)) {
				return node.Snapshot{}, mismatch(op)
			}
			moves[op.From.Section] = op.To.Section
		case ReloadSection:
			if op.Section == nil || !inRange(op.From.Section, len(prev.Sections)) {
				return node.Snapshot{}, mismatch(op)
			}
			reloads[op.From.Section] = op.Section
		case ReloadPart:
			parts = append(parts, op)
		case DeleteRow, MoveRow, ReloadRow:
			rowOps[op.From.Section] = append(rowOps[op.From.Section], op)
		case InsertRow:
			// Inserts are addressed by new section; resolved below.
		default:
			return node.Snapshot{}, mismatch(op)
		}
	}

	size := len(prev.Sections) - len(deleted) + len(inserted)
	if size < 0 {
		return node.Snapshot{}, fmt.Errorf("%w: negative section count", ErrScriptMismatch)
	}
	out := make([]node.Section, size)
	filled := make([]bool, size)
	origin := make([]int, size) // new -> old, -1 for inserted

	place := func(at int, sec node.Section, from int) error {
		if !inRange(at, size) || filled[at] {
			return fmt.Errorf("%w: section slot %d", ErrScriptMismatch, at)
		}
		out[at], filled[at], origin[at] = sec, true, from
		return nil
	}

	for at, sec := range inserted {
		if err := place(at, sec.Clone(), -1); err != nil {
			return node.Snapshot{}, err
		}
	}
	for from, to := range moves {
		if deleted[from] {
			return node.Snapshot{}, fmt.Errorf("%w: section %d moved and deleted", ErrScriptMismatch, from)
		}
		if err := place(to, prev.Sections[from].Clone(), from); err != nil {
			return node.Snapshot{}, err
		}
	}
	slot := 0
	for i, sec := range prev.Sections {
		if deleted[i] {
			continue
		}
		if _, ok := moves[i]; ok {
			continue
		}
		for slot < size && filled[slot] {
			slot++
		}
		if err := place(slot, sec.Clone(), i); err != nil {
			return node.Snapshot{}, err
		}
	}
	for i := range filled {
		if !filled[i] {
			return node.Snapshot{}, fmt.Errorf("%w: section slot %d left empty", ErrScriptMismatch, i)
		}
	}

	for at := range out {
		from := origin[at]
		if from < 0 {
			continue
		}
		if sec, ok := reloads[from]; ok {
			out[at] = sec.Clone()
			continue
		}
		rows, err := applyRows(prev.Sections[from].Rows, from, at, rowOps[from], s.Ops)
		if err != nil {
			return node.Snapshot{}, err
		}
		out[at].Rows = rows
	}

	for _, op := range parts {
		if !inRange(op.To.Section, size) || op.Node == nil {
			return node.Snapshot{}, mismatch(op)
		}
		n := *op.Node
		if op.Section != nil {
			out[op.To.Section].Node = op.Section.Node
		}
		if op.Part == node.PartFooter {
			out[op.To.Section].Footer = &n
		} else {
			out[op.To.Section].Header = &n
		}
	}

	return node.Snapshot{Sections: out}, nil
}

// applyRows replays the row operations of one surviving section that moved
// from old index from to new index to.
func applyRows(prev []node.Node, from, to int, ops []Op, all []Op) ([]node.Node, error) {
	deleted := map[int]bool{}
	moves := map[int]int{}
	reloads := map[int]node.Node{}
	inserted := map[int]node.Node{}

	for _, op := range ops {
		if !inRange(op.From.Row, len(prev)) {
			return nil, mismatch(op)
		}
		switch op.Kind {
		case DeleteRow:
			deleted[op.From.Row] = true
		case MoveRow:
			if op.To.Section != to {
				return nil, mismatch(op)
			}
			moves[op.From.Row] = op.To.Row
		case ReloadRow:
			if op.Node == nil {
				return nil, mismatch(op)
			}
			reloads[op.From.Row] = *op.Node
		}
	}
	for _, op := range all {
		if op.Kind != InsertRow || op.To.Section != to {
			continue
		}
		if op.Node == nil {
			return nil, mismatch(op)
		}
		inserted[op.To.Row] = *op.Node
	}

	size := len(prev) - len(deleted) + len(inserted)
	if size < 0 {
		return nil, fmt.Errorf("%w: negative row count in section %d", ErrScriptMismatch, from)
	}
	out := make([]node.Node, size)
	filled := make([]bool, size)

	place := func(at int, n node.Node) error {
		if !inRange(at, size) || filled[at] {
			return fmt.Errorf("%w: row slot (%d,%d)", ErrScriptMismatch, to, at)
		}
		out[at], filled[at] = n, true
		return nil
	}

	current := func(i int) node.Node {
		if n, ok := reloads[i]; ok {
			return n
		}
		return prev[i]
	}

	for at, n := range inserted {
		if err := place(at, n); err != nil {
			return nil, err
		}
	}
	for i, at := range moves {
		if deleted[i] {
			return nil, fmt.Errorf("%w: row (%d,%d) moved and deleted", ErrScriptMismatch, from, i)
		}
		if err := place(at, current(i)); err != nil {
			return nil, err
		}
	}
	slot := 0
	for i := range prev {
		if deleted[i] {
			continue
		}
		if _, ok := moves[i]; ok {
			continue
		}
		for slot < size && filled[slot] {
			slot++
		}
		if err := place(slot, current(i)); err != nil {
			return nil, err
		}
	}
	for i := range filled {
		if !filled[i] {
			return nil, fmt.Errorf("%w: row slot (%d,%d) left empty", ErrScriptMismatch, to, i)
		}
	}
	return out, nil
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

func mismatch(op Op) error {
	return fmt.Errorf("%w: %s", ErrScriptMismatch, op)
}
