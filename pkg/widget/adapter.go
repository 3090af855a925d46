package widget

import (
	"sync/atomic"

	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/provider"
)

// state is the displayed snapshot together with the registry it was
// composed from.
type state struct {
	snapshot node.Snapshot
	registry *provider.Registry
	seq      uint64
}

// Adapter answers widget callbacks. It is safe for concurrent use; every
// callback reads one consistent state.
type Adapter struct {
	state atomic.Pointer[state]
}

// NewAdapter creates an adapter showing an empty list.
func NewAdapter() *Adapter {
	a := &Adapter{}
	a.state.Store(&state{registry: provider.NewRegistry()})
	return a
}

// Commit makes snap the displayed snapshot. It is called after the widget
// has applied the batch that produced snap.
func (a *Adapter) Commit(seq uint64, snap node.Snapshot, reg *provider.Registry) {
	a.state.Store(&state{snapshot: snap, registry: reg, seq: seq})
}

// Snapshot returns the displayed snapshot.
func (a *Adapter) Snapshot() node.Snapshot {
	return a.state.Load().snapshot
}

// Registry returns the registry of the displayed snapshot.
func (a *Adapter) Registry() *provider.Registry {
	return a.state.Load().registry
}

// Seq returns the sequence number of the last committed batch.
func (a *Adapter) Seq() uint64 {
	return a.state.Load().seq
}

// NumberOfSections returns the displayed section count.
func (a *Adapter) NumberOfSections() int {
	return a.state.Load().snapshot.Len()
}

// NumberOfRows returns the row count of a section.
func (a *Adapter) NumberOfRows(section int) (int, error) {
	sec, ok := a.state.Load().snapshot.Section(section)
	if !ok {
		return 0, ErrIndexOutOfRange
	}
	return sec.Len(), nil
}

// Node returns the row at ip.
func (a *Adapter) Node(ip node.IndexPath) (node.Node, error) {
	n, _, err := a.row(ip)
	return n, err
}

// HeightForRow returns the provider height for the row at ip. ok is false
// when the provider leaves the height to the widget.
func (a *Adapter) HeightForRow(ip node.IndexPath) (h float64, ok bool, err error) {
	n, reg, err := a.row(ip)
	if err != nil {
		return 0, false, err
	}
	return reg.Height(ip, n)
}

// ConfigureRow lets the row's provider configure a reusable view.
func (a *Adapter) ConfigureRow(view any, ip node.IndexPath) error {
	n, reg, err := a.row(ip)
	if err != nil {
		return err
	}
	return reg.Configure(view, ip, n)
}

// DidSelect notifies the row's provider of a selection.
func (a *Adapter) DidSelect(ip node.IndexPath) error {
	n, reg, err := a.row(ip)
	if err != nil {
		return err
	}
	return reg.Select(ip, n)
}

// DidDelete notifies the row's provider of a delete gesture.
func (a *Adapter) DidDelete(ip node.IndexPath) error {
	n, reg, err := a.row(ip)
	if err != nil {
		return err
	}
	return reg.Delete(ip, n)
}

// CanEditRow reports whether the row at ip offers edit gestures.
func (a *Adapter) CanEditRow(ip node.IndexPath) (bool, error) {
	n, reg, err := a.row(ip)
	if err != nil {
		return false, err
	}
	return reg.CanEdit(ip, n)
}

// ActionsForRow returns the row's edit actions.
func (a *Adapter) ActionsForRow(ip node.IndexPath) ([]provider.Action, error) {
	n, reg, err := a.row(ip)
	if err != nil {
		return nil, err
	}
	return reg.Actions(ip, n)
}

// HeightForHeader returns the header height of a section. ok is false when
// the section has no header or its provider leaves the height to the widget.
func (a *Adapter) HeightForHeader(section int) (float64, bool, error) {
	return a.partHeight(section, node.PartHeader)
}

// HeightForFooter returns the footer height of a section.
func (a *Adapter) HeightForFooter(section int) (float64, bool, error) {
	return a.partHeight(section, node.PartFooter)
}

// ConfigureHeader lets the header provider configure a view. Sections
// without a header are a no-op.
func (a *Adapter) ConfigureHeader(view any, section int) error {
	return a.configurePart(view, section, node.PartHeader)
}

// ConfigureFooter lets the footer provider configure a view.
func (a *Adapter) ConfigureFooter(view any, section int) error {
	return a.configurePart(view, section, node.PartFooter)
}

// HasHeader reports whether the section shows a header.
func (a *Adapter) HasHeader(section int) (bool, error) {
	n, _, err := a.part(section, node.PartHeader)
	return n != nil, err
}

// HasFooter reports whether the section shows a footer.
func (a *Adapter) HasFooter(section int) (bool, error) {
	n, _, err := a.part(section, node.PartFooter)
	return n != nil, err
}

func (a *Adapter) row(ip node.IndexPath) (node.Node, *provider.Registry, error) {
	st := a.state.Load()
	n, ok := st.snapshot.At(ip)
	if !ok {
		return node.Node{}, nil, ErrIndexOutOfRange
	}
	return n, st.registry, nil
}

func (a *Adapter) part(section int, p node.Part) (*node.Node, *provider.Registry, error) {
	st := a.state.Load()
	sec, ok := st.snapshot.Section(section)
	if !ok {
		return nil, nil, ErrIndexOutOfRange
	}
	return sec.Part(p), st.registry, nil
}

func (a *Adapter) partHeight(section int, p node.Part) (float64, bool, error) {
	n, reg, err := a.part(section, p)
	if err != nil || n == nil {
		return 0, false, err
	}
	return reg.Height(node.SectionPath(section), *n)
}

func (a *Adapter) configurePart(view any, section int, p node.Part) error {
	n, reg, err := a.part(section, p)
	if err != nil || n == nil {
		return err
	}
	return reg.Configure(view, node.SectionPath(section), *n)
}
