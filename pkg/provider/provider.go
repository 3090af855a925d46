package provider

import (
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/stream"
)

// Provider is anything registered under a fixed identity.
type Provider interface {
	Identity() string
}

// RowProvider produces the rows of one kind. Each emission replaces the
// provider's previous rows; an empty slice means no rows this pass.
type RowProvider interface {
	Provider
	Nodes() *stream.Stream[[]node.Node]
}

// PartProvider produces a section header or footer. A nil emission means the
// part is absent.
type PartProvider interface {
	Provider
	Part() node.Part
	Node() *stream.Stream[*node.Node]
}

// Sizer computes row or part heights. ok is false when the widget default
// should be used.
type Sizer interface {
	Height(ip node.IndexPath, n node.Node) (height float64, ok bool, err error)
}

// Configurer configures a reusable host view for a node.
type Configurer interface {
	Configure(view any, ip node.IndexPath, n node.Node) error
}

// Selecter handles row selection.
type Selecter interface {
	Select(ip node.IndexPath, n node.Node) error
}

// Deleter handles row deletion.
type Deleter interface {
	Delete(ip node.IndexPath, n node.Node) error
}

// Editor supplies row-level edit actions.
type Editor interface {
	CanEdit(ip node.IndexPath, n node.Node) (bool, error)
	Actions(ip node.IndexPath, n node.Node) ([]Action, error)
}

// ActionStyle is the presentation style of a row action.
type ActionStyle uint8

const (
	ActionDefault ActionStyle = iota
	ActionDestructive
	ActionNormal
)

// String returns the string representation of the ActionStyle.
func (s ActionStyle) String() string {
	switch s {
	case ActionDefault:
		return "default"
	case ActionDestructive:
		return "destructive"
	case ActionNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Action is a row-level action offered by the host widget.
type Action struct {
	Title   string
	Style   ActionStyle
	Handler func(ip node.IndexPath)
}
