package node

import "fmt"

// NoRow is the Row of an index path that addresses a whole section, its
// header or its footer.
const NoRow = -1

// IndexPath addresses a row by section and row position.
type IndexPath struct {
	Section int
	Row     int
}

// SectionPath returns the index path of a whole section.
func SectionPath(section int) IndexPath {
	return IndexPath{Section: section, Row: NoRow}
}

// String returns the path as "(section,row)".
func (p IndexPath) String() string {
	return fmt.Sprintf("(%d,%d)", p.Section, p.Row)
}

// Snapshot is the whole list at one instant.
type Snapshot struct {
	Sections []Section
}

// NewSnapshot creates a snapshot from sections.
func NewSnapshot(sections ...Section) Snapshot {
	return Snapshot{Sections: sections}
}

// Len returns the number of sections.
func (s Snapshot) Len() int {
	return len(s.Sections)
}

// RowCount returns the number of rows in a section, or 0 when out of range.
func (s Snapshot) RowCount(section int) int {
	if section < 0 || section >= len(s.Sections) {
		return 0
	}
	return len(s.Sections[section].Rows)
}

// At returns the row at path.
func (s Snapshot) At(p IndexPath) (Node, bool) {
	if p.Section < 0 || p.Section >= len(s.Sections) {
		return Node{}, false
	}
	rows := s.Sections[p.Section].Rows
	if p.Row < 0 || p.Row >= len(rows) {
		return Node{}, false
	}
	return rows[p.Row], true
}

// Section returns the section at index.
func (s Snapshot) Section(index int) (Section, bool) {
	if index < 0 || index >= len(s.Sections) {
		return Section{}, false
	}
	return s.Sections[index], true
}

// Clone returns a deep structural copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Sections: make([]Section, len(s.Sections))}
	for i, sec := range s.Sections {
		out.Sections[i] = sec.Clone()
	}
	return out
}

// Equal reports whether both snapshots have the same sections and rows, in
// the same order, with equal values.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Sections) != len(other.Sections) {
		return false
	}
	for i, a := range s.Sections {
		b := other.Sections[i]
		if a.ID() != b.ID() || !a.Equal(b) || len(a.Rows) != len(b.Rows) {
			return false
		}
		for j := range a.Rows {
			if a.Rows[j].ID() != b.Rows[j].ID() || !a.Rows[j].Equal(b.Rows[j]) {
				return false
			}
		}
	}
	return true
}

// Shape is the identity-only structure of a snapshot.
type Shape struct {
	Section ID
	Rows    []ID
}

// Shapes returns the ordered section and row identities.
func (s Snapshot) Shapes() []Shape {
	out := make([]Shape, len(s.Sections))
	for i, sec := range s.Sections {
		rows := make([]ID, len(sec.Rows))
		for j, r := range sec.Rows {
			rows[j] = r.ID()
		}
		out[i] = Shape{Section: sec.ID(), Rows: rows}
	}
	return out
}

// Validate checks the uniqueness invariants: section IDs are unique within
// the snapshot and row IDs are unique within their section.
func (s Snapshot) Validate() error {
	sections := make(map[ID]int, len(s.Sections))
	for i, sec := range s.Sections {
		id := sec.ID()
		if prev, dup := sections[id]; dup {
			return &DuplicateKeyError{ID: id, Section: -1, First: prev, Second: i}
		}
		sections[id] = i

		rows := make(map[ID]int, len(sec.Rows))
		for j, r := range sec.Rows {
			rid := r.ID()
			if prev, dup := rows[rid]; dup {
				return &DuplicateKeyError{ID: rid, Section: i, First: prev, Second: j}
			}
			rows[rid] = j
		}
	}
	return nil
}

// DuplicateKeyError reports an identity that occurs twice where it must be
// unique. Section is -1 for duplicate sections.
type DuplicateKeyError struct {
	ID      ID
	Section int
	First   int
	Second  int
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	if e.Section < 0 {
		return fmt.Sprintf("node: duplicate section %s at indexes %d and %d", e.ID, e.First, e.Second)
	}
	return fmt.Sprintf("node: duplicate row %s in section %d at rows %d and %d", e.ID, e.Section, e.First, e.Second)
}

// Code returns the diagnostic code.
func (e *DuplicateKeyError) Code() string {
	return "F003"
}
