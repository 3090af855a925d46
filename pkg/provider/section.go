package provider

import "github.com/vango-dev/flix/pkg/node"

// Section groups row providers with an optional header and footer.
type Section struct {
	id            string
	descriptor    any
	rows          []RowProvider
	header        PartProvider
	footer        PartProvider
	hideWhenEmpty bool
}

// SectionOption configures a Section.
type SectionOption func(*Section)

// WithHeader sets the header provider.
func WithHeader(p PartProvider) SectionOption {
	return func(s *Section) { s.header = p }
}

// WithFooter sets the footer provider.
func WithFooter(p PartProvider) SectionOption {
	return func(s *Section) { s.footer = p }
}

// WithDescriptor sets the section descriptor value. A descriptor change
// reconfigures the section's header and footer.
func WithDescriptor(v any) SectionOption {
	return func(s *Section) { s.descriptor = v }
}

// HideWhenEmpty omits the section from snapshots while it has no rows, no
// header and no footer.
func HideWhenEmpty() SectionOption {
	return func(s *Section) { s.hideWhenEmpty = true }
}

// NewSection creates a section provider.
func NewSection(id string, rows []RowProvider, opts ...SectionOption) *Section {
	s := &Section{id: id, rows: rows}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity returns the section identity.
func (s *Section) Identity() string {
	return s.id
}

// Rows returns the row providers in display order.
func (s *Section) Rows() []RowProvider {
	return s.rows
}

// Header returns the header provider, or nil.
func (s *Section) Header() PartProvider {
	return s.header
}

// Footer returns the footer provider, or nil.
func (s *Section) Footer() PartProvider {
	return s.footer
}

// Compose builds the section node from the latest emission of every row
// provider (in provider order) and of the header and footer. ok is false when
// the section is hidden.
func (s *Section) Compose(rows [][]node.Node, header, footer *node.Node) (sec node.Section, ok bool) {
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	if s.hideWhenEmpty && total == 0 && header == nil && footer == nil {
		return node.Section{}, false
	}
	flat := make([]node.Node, 0, total)
	for _, r := range rows {
		flat = append(flat, r...)
	}
	return node.NewSection(s.id, s.descriptor, header, footer, flat...), true
}
