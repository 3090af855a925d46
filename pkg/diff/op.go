package diff

import (
	"fmt"
	"strings"

	"github.com/vango-dev/flix/pkg/node"
)

// NoRow is the Row value of section-level index paths.
const NoRow = node.NoRow

// none marks the unused side of an operation.
var none = node.IndexPath{Section: -1, Row: NoRow}

// Kind is the type of an edit operation.
type Kind uint8

const (
	DeleteSection Kind = iota + 1 // Remove a section and its rows
	InsertSection                 // Insert a section with its rows
	MoveSection                   // Move a section with its rows
	ReloadSection                 // Replace a section's content in place
	ReloadPart                    // Reconfigure a header or footer in place
	DeleteRow                     // Remove a row
	InsertRow                     // Insert a row
	MoveRow                       // Move a row within its section
	ReloadRow                     // Reconfigure a row in place
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case DeleteSection:
		return "DeleteSection"
	case InsertSection:
		return "InsertSection"
	case MoveSection:
		return "MoveSection"
	case ReloadSection:
		return "ReloadSection"
	case ReloadPart:
		return "ReloadPart"
	case DeleteRow:
		return "DeleteRow"
	case InsertRow:
		return "InsertRow"
	case MoveRow:
		return "MoveRow"
	case ReloadRow:
		return "ReloadRow"
	default:
		return "Unknown"
	}
}

// IsSection reports whether the kind addresses whole sections.
func (k Kind) IsSection() bool {
	return k >= DeleteSection && k <= ReloadPart
}

// Op is a single edit operation.
type Op struct {
	Kind    Kind
	From    node.IndexPath // Pre-batch position
	To      node.IndexPath // Post-batch position
	Part    node.Part      // ReloadPart only
	Node    *node.Node     // New node for InsertRow, ReloadRow, ReloadPart
	Section *node.Section  // New section for InsertSection, ReloadSection; new descriptor for ReloadPart
}

// String returns a compact representation such as "MoveRow (0,0)->(0,1)".
func (o Op) String() string {
	switch o.Kind {
	case DeleteSection:
		return fmt.Sprintf("%s %d", o.Kind, o.From.Section)
	case InsertSection:
		return fmt.Sprintf("%s %d", o.Kind, o.To.Section)
	case MoveSection, ReloadSection:
		return fmt.Sprintf("%s %d->%d", o.Kind, o.From.Section, o.To.Section)
	case ReloadPart:
		return fmt.Sprintf("%s %s %d->%d", o.Kind, o.Part, o.From.Section, o.To.Section)
	case DeleteRow:
		return fmt.Sprintf("%s %s", o.Kind, o.From)
	case InsertRow:
		return fmt.Sprintf("%s %s", o.Kind, o.To)
	default:
		return fmt.Sprintf("%s %s->%s", o.Kind, o.From, o.To)
	}
}

// Script is an ordered edit script forming one atomic batch.
type Script struct {
	Ops []Op
}

// Empty reports whether the script changes nothing.
func (s *Script) Empty() bool {
	return s == nil || len(s.Ops) == 0
}

// Len returns the number of operations.
func (s *Script) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Ops)
}

// Count returns the number of operations of the given kind.
func (s *Script) Count(kind Kind) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, op := range s.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Filter returns the operations of the given kinds, in script order.
func (s *Script) Filter(kinds ...Kind) []Op {
	if s == nil {
		return nil
	}
	var out []Op
	for _, op := range s.Ops {
		for _, k := range kinds {
			if op.Kind == k {
				out = append(out, op)
				break
			}
		}
	}
	return out
}

// Counts returns the number of operations per kind.
func (s *Script) Counts() map[Kind]int {
	out := make(map[Kind]int)
	if s == nil {
		return out
	}
	for _, op := range s.Ops {
		out[op.Kind]++
	}
	return out
}

// String returns one operation per line.
func (s *Script) String() string {
	if s.Empty() {
		return "(empty)"
	}
	var b strings.Builder
	for i, op := range s.Ops {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(op.String())
	}
	return b.String()
}
