package node

// Section is an ordered run of rows with an optional header and footer.
// The embedded descriptor node carries the section identity and a comparable
// descriptor value.
type Section struct {
	Node
	Header *Node
	Footer *Node
	Rows   []Node
}

// NewSection creates a section. The descriptor node uses id as both provider
// identity and key.
func NewSection(id string, descriptor any, header, footer *Node, rows ...Node) Section {
	return Section{
		Node:   Unique(id, descriptor),
		Header: header,
		Footer: footer,
		Rows:   rows,
	}
}

// Equal reports whether the section-level content is unchanged: header,
// footer and, when either side has a header or footer, the descriptor. A
// descriptor is only shown through its parts. Rows are not compared.
func (s Section) Equal(other Section) bool {
	if !nodePtrEqual(s.Header, other.Header) || !nodePtrEqual(s.Footer, other.Footer) {
		return false
	}
	if !s.hasParts() && !other.hasParts() {
		return true
	}
	return s.Node.Equal(other.Node)
}

func (s Section) hasParts() bool {
	return s.Header != nil || s.Footer != nil
}

// Len returns the number of rows.
func (s Section) Len() int {
	return len(s.Rows)
}

// Part returns the header or footer node, or nil when absent.
func (s Section) Part(p Part) *Node {
	if p == PartFooter {
		return s.Footer
	}
	return s.Header
}

// Clone returns a copy whose row slice and part pointers are not shared.
func (s Section) Clone() Section {
	c := s
	c.Rows = append([]Node(nil), s.Rows...)
	if s.Header != nil {
		h := *s.Header
		c.Header = &h
	}
	if s.Footer != nil {
		f := *s.Footer
		c.Footer = &f
	}
	return c
}

// Part selects a section header or footer.
type Part uint8

const (
	PartHeader Part = iota
	PartFooter
)

// String returns the string representation of the Part.
func (p Part) String() string {
	switch p {
	case PartHeader:
		return "header"
	case PartFooter:
		return "footer"
	default:
		return "unknown"
	}
}
