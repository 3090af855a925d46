package provider

import (
	"reflect"

	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/stream"
)

// handlers holds the typed callbacks shared by Row, Rows and Part.
type handlers[T any] struct {
	id        string
	height    func(ip node.IndexPath, v T) float64
	configure func(view any, ip node.IndexPath, v T) error
	sel       func(ip node.IndexPath, v T)
	del       func(ip node.IndexPath, v T)
	canEdit   func(ip node.IndexPath, v T) bool
	actions   func(ip node.IndexPath, v T) []Action
}

// Option configures a typed provider.
type Option[T any] func(*handlers[T])

// WithHeight sets the height callback.
func WithHeight[T any](fn func(ip node.IndexPath, v T) float64) Option[T] {
	return func(h *handlers[T]) { h.height = fn }
}

// WithConfigure sets the view configuration callback.
func WithConfigure[T any](fn func(view any, ip node.IndexPath, v T) error) Option[T] {
	return func(h *handlers[T]) { h.configure = fn }
}

// WithSelect sets the selection callback.
func WithSelect[T any](fn func(ip node.IndexPath, v T)) Option[T] {
	return func(h *handlers[T]) { h.sel = fn }
}

// WithDelete sets the deletion callback. Rows with a deletion callback are
// editable unless WithCanEdit says otherwise.
func WithDelete[T any](fn func(ip node.IndexPath, v T)) Option[T] {
	return func(h *handlers[T]) { h.del = fn }
}

// WithCanEdit decides per row whether editing is allowed.
func WithCanEdit[T any](fn func(ip node.IndexPath, v T) bool) Option[T] {
	return func(h *handlers[T]) { h.canEdit = fn }
}

// WithActions sets the row action supplier.
func WithActions[T any](fn func(ip node.IndexPath, v T) []Action) Option[T] {
	return func(h *handlers[T]) { h.actions = fn }
}

// Identity implements Provider.
func (h *handlers[T]) Identity() string {
	return h.id
}

// value downcasts a node value to T.
func (h *handlers[T]) value(n node.Node) (T, error) {
	v, ok := n.Value.(T)
	if !ok {
		var zero T
		return zero, &TypeMismatchError{
			Identity: h.id,
			Want:     reflect.TypeOf((*T)(nil)).Elem().String(),
			Got:      typeName(n.Value),
		}
	}
	return v, nil
}

// Height implements Sizer.
func (h *handlers[T]) Height(ip node.IndexPath, n node.Node) (float64, bool, error) {
	if h.height == nil {
		return 0, false, nil
	}
	v, err := h.value(n)
	if err != nil {
		return 0, false, err
	}
	return h.height(ip, v), true, nil
}

// Configure implements Configurer.
func (h *handlers[T]) Configure(view any, ip node.IndexPath, n node.Node) error {
	if h.configure == nil {
		return nil
	}
	v, err := h.value(n)
	if err != nil {
		return err
	}
	return h.configure(view, ip, v)
}

// Select implements Selecter.
func (h *handlers[T]) Select(ip node.IndexPath, n node.Node) error {
	if h.sel == nil {
		return nil
	}
	v, err := h.value(n)
	if err != nil {
		return err
	}
	h.sel(ip, v)
	return nil
}

// Delete implements Deleter.
func (h *handlers[T]) Delete(ip node.IndexPath, n node.Node) error {
	if h.del == nil {
		return nil
	}
	v, err := h.value(n)
	if err != nil {
		return err
	}
	h.del(ip, v)
	return nil
}

// CanEdit implements Editor.
func (h *handlers[T]) CanEdit(ip node.IndexPath, n node.Node) (bool, error) {
	v, err := h.value(n)
	if err != nil {
		return false, err
	}
	if h.canEdit != nil {
		return h.canEdit(ip, v), nil
	}
	return h.del != nil || h.actions != nil, nil
}

// Actions implements Editor.
func (h *handlers[T]) Actions(ip node.IndexPath, n node.Node) ([]Action, error) {
	if h.actions == nil {
		return nil, nil
	}
	v, err := h.value(n)
	if err != nil {
		return nil, err
	}
	return h.actions(ip, v), nil
}

func newHandlers[T any](id string, opts []Option[T]) handlers[T] {
	h := handlers[T]{id: id}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Row provides at most one row whose key is the provider identity.
type Row[T any] struct {
	handlers[T]
	values *stream.Stream[*T]
}

// NewRow creates a single-row provider. A nil emission hides the row.
func NewRow[T any](id string, values *stream.Stream[*T], opts ...Option[T]) *Row[T] {
	return &Row[T]{handlers: newHandlers(id, opts), values: values}
}

// NewStaticRow creates a provider that always shows one row with value v.
func NewStaticRow[T any](id string, v T, opts ...Option[T]) *Row[T] {
	return NewRow(id, stream.Just(&v), opts...)
}

// Nodes implements RowProvider.
func (r *Row[T]) Nodes() *stream.Stream[[]node.Node] {
	id := r.id
	return stream.Map(r.values, func(v *T) []node.Node {
		if v == nil {
			return nil
		}
		return []node.Node{node.Unique(id, *v)}
	})
}

// Rows provides a run of rows keyed by a key function.
type Rows[T any] struct {
	handlers[T]
	values *stream.Stream[[]T]
	key    func(T) string
}

// NewRows creates a multi-row provider. A nil key function keys rows with
// node.KeyOf.
func NewRows[T any](id string, values *stream.Stream[[]T], key func(T) string, opts ...Option[T]) *Rows[T] {
	if key == nil {
		key = func(v T) string { return node.KeyOf(v) }
	}
	return &Rows[T]{handlers: newHandlers(id, opts), values: values, key: key}
}

// Nodes implements RowProvider.
func (r *Rows[T]) Nodes() *stream.Stream[[]node.Node] {
	id, key := r.id, r.key
	return stream.Map(r.values, func(vs []T) []node.Node {
		out := make([]node.Node, len(vs))
		for i, v := range vs {
			out[i] = node.New(id, key(v), v)
		}
		return out
	})
}

// Part provides a section header or footer.
type Part[T any] struct {
	handlers[T]
	part   node.Part
	values *stream.Stream[*T]
}

// NewHeader creates a header provider. A nil emission hides the header.
func NewHeader[T any](id string, values *stream.Stream[*T], opts ...Option[T]) *Part[T] {
	return &Part[T]{handlers: newHandlers(id, opts), part: node.PartHeader, values: values}
}

// NewFooter creates a footer provider. A nil emission hides the footer.
func NewFooter[T any](id string, values *stream.Stream[*T], opts ...Option[T]) *Part[T] {
	return &Part[T]{handlers: newHandlers(id, opts), part: node.PartFooter, values: values}
}

// Part implements PartProvider.
func (p *Part[T]) Part() node.Part {
	return p.part
}

// Node implements PartProvider.
func (p *Part[T]) Node() *stream.Stream[*node.Node] {
	id := p.id
	return stream.Map(p.values, func(v *T) *node.Node {
		if v == nil {
			return nil
		}
		n := node.Unique(id, *v)
		return &n
	})
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
