package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/flix/pkg/node"
)

// Registry maps identities to the providers of one builder scope.
//
// A Registry is filled once when the provider tree is assembled. Replacing
// the tree means building a new Registry, so readers holding one always see
// a consistent set.
type Registry struct {
	mu         sync.RWMutex
	rows       map[string]RowProvider
	parts      map[string]PartProvider
	sections   []*Section
	sectionIDs map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rows:       make(map[string]RowProvider),
		parts:      make(map[string]PartProvider),
		sectionIDs: make(map[string]bool),
	}
}

// Build creates a Registry holding every provider of sections.
func Build(sections ...*Section) (*Registry, error) {
	r := NewRegistry()
	if err := r.RegisterSections(sections...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register records a row or part provider under its identity.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(p)
}

func (r *Registry) register(p Provider) error {
	id := p.Identity()
	switch v := p.(type) {
	case RowProvider:
		if _, dup := r.rows[id]; dup {
			return &DuplicateIdentityError{Identity: id, Kind: "row"}
		}
		if _, dup := r.parts[id]; dup {
			return &DuplicateIdentityError{Identity: id, Kind: "row"}
		}
		r.rows[id] = v
	case PartProvider:
		if _, dup := r.rows[id]; dup {
			return &DuplicateIdentityError{Identity: id, Kind: v.Part().String()}
		}
		if _, dup := r.parts[id]; dup {
			return &DuplicateIdentityError{Identity: id, Kind: v.Part().String()}
		}
		r.parts[id] = v
	default:
		return &UnsupportedProviderError{Identity: id, Type: fmt.Sprintf("%T", p)}
	}
	return nil
}

// RegisterSections records sections and every provider they contain.
// Nothing is recorded when an error is returned.
func (r *Registry) RegisterSections(sections ...*Section) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate against a scratch copy so a failure leaves r untouched.
	scratch := &Registry{
		rows:       make(map[string]RowProvider, len(r.rows)),
		parts:      make(map[string]PartProvider, len(r.parts)),
		sectionIDs: make(map[string]bool, len(r.sectionIDs)),
	}
	for k, v := range r.rows {
		scratch.rows[k] = v
	}
	for k, v := range r.parts {
		scratch.parts[k] = v
	}
	for k := range r.sectionIDs {
		scratch.sectionIDs[k] = true
	}

	for _, s := range sections {
		if scratch.sectionIDs[s.id] {
			return &DuplicateIdentityError{Identity: s.id, Kind: "section"}
		}
		scratch.sectionIDs[s.id] = true
		for _, p := range s.rows {
			if err := scratch.register(p); err != nil {
				return err
			}
		}
		for _, p := range []PartProvider{s.header, s.footer} {
			if p == nil {
				continue
			}
			if err := scratch.register(p); err != nil {
				return err
			}
		}
	}

	r.rows, r.parts, r.sectionIDs = scratch.rows, scratch.parts, scratch.sectionIDs
	r.sections = append(r.sections, sections...)
	return nil
}

// Sections returns the registered sections in registration order.
func (r *Registry) Sections() []*Section {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Section(nil), r.sections...)
}

// Resolve returns the provider registered under id.
func (r *Registry) Resolve(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.rows[id]; ok {
		return p, nil
	}
	if p, ok := r.parts[id]; ok {
		return p, nil
	}
	return nil, &UnresolvedIdentityError{Identity: id}
}

// MustResolve is like Resolve but panics with the *UnresolvedIdentityError.
// Use it only where an unregistered identity is a programming error.
func (r *Registry) MustResolve(id string) Provider {
	p, err := r.Resolve(id)
	if err != nil {
		panic(err)
	}
	return p
}

// Identities returns every registered provider identity, sorted.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rows)+len(r.parts))
	for id := range r.rows {
		ids = append(ids, id)
	}
	for id := range r.parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows) + len(r.parts)
}

// --- Dispatch ---

// Height asks the node's provider for a height. ok is false when the
// provider has no opinion.
func (r *Registry) Height(ip node.IndexPath, n node.Node) (float64, bool, error) {
	p, err := r.Resolve(n.Provider)
	if err != nil {
		return 0, false, err
	}
	if s, ok := p.(Sizer); ok {
		return s.Height(ip, n)
	}
	return 0, false, nil
}

// Configure lets the node's provider configure a host view.
func (r *Registry) Configure(view any, ip node.IndexPath, n node.Node) error {
	p, err := r.Resolve(n.Provider)
	if err != nil {
		return err
	}
	if c, ok := p.(Configurer); ok {
		return c.Configure(view, ip, n)
	}
	return nil
}

// Select forwards a row selection.
func (r *Registry) Select(ip node.IndexPath, n node.Node) error {
	p, err := r.Resolve(n.Provider)
	if err != nil {
		return err
	}
	if s, ok := p.(Selecter); ok {
		return s.Select(ip, n)
	}
	return nil
}

// Delete forwards a row deletion.
func (r *Registry) Delete(ip node.IndexPath, n node.Node) error {
	p, err := r.Resolve(n.Provider)
	if err != nil {
		return err
	}
	if d, ok := p.(Deleter); ok {
		return d.Delete(ip, n)
	}
	return nil
}

// CanEdit reports whether a row is editable.
func (r *Registry) CanEdit(ip node.IndexPath, n node.Node) (bool, error) {
	p, err := r.Resolve(n.Provider)
	if err != nil {
		return false, err
	}
	if e, ok := p.(Editor); ok {
		return e.CanEdit(ip, n)
	}
	return false, nil
}

// Actions returns the row actions for a node.
func (r *Registry) Actions(ip node.IndexPath, n node.Node) ([]Action, error) {
	p, err := r.Resolve(n.Provider)
	if err != nil {
		return nil, err
	}
	if e, ok := p.(Editor); ok {
		return e.Actions(ip, n)
	}
	return nil, nil
}
