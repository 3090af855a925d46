package node

import (
	"fmt"
	"reflect"
)

// ID identifies a node across snapshots.
type ID struct {
	Provider string // Identity of the producing provider
	Key      string // Stable key of the entity
}

// String returns the ID as "provider/key".
func (id ID) String() string {
	return id.Provider + "/" + id.Key
}

// Node is an identity-tagged, equality-comparable unit of list content.
type Node struct {
	Provider string // Identity of the producing provider
	Key      string // Stable key, used for matching
	Value    any    // Opaque payload, used for change detection
}

// Equatable is implemented by values that define their own equality.
type Equatable interface {
	Equal(other any) bool
}

// Keyed is implemented by values that supply their own stable key.
type Keyed interface {
	Key() string
}

// New creates a node.
func New(provider, key string, value any) Node {
	return Node{Provider: provider, Key: key, Value: value}
}

// Unique creates the single node of a provider that always produces at most
// one row. The key is the provider identity itself.
func Unique(provider string, value any) Node {
	return Node{Provider: provider, Key: provider, Value: value}
}

// FromValue creates a node whose key is taken from a Keyed value.
// Values that are not Keyed are keyed by their formatted representation.
func FromValue(provider string, value any) Node {
	return Node{Provider: provider, Key: KeyOf(value), Value: value}
}

// KeyOf returns the stable key for a value.
func KeyOf(value any) string {
	switch v := value.(type) {
	case Keyed:
		return v.Key()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ID returns the identity used for matching.
func (n Node) ID() ID {
	return ID{Provider: n.Provider, Key: n.Key}
}

// Equal reports whether two nodes have the same key and equal values.
// The provider identity does not take part in equality.
func (n Node) Equal(other Node) bool {
	return n.Key == other.Key && ValuesEqual(n.Value, other.Value)
}

// String returns a short debug representation.
func (n Node) String() string {
	return fmt.Sprintf("%s(%v)", n.ID(), n.Value)
}

// ValuesEqual compares two node values.
func ValuesEqual(a, b any) bool {
	if eq, ok := a.(Equatable); ok {
		return eq.Equal(b)
	}
	// Fast path for common types
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// nodePtrEqual compares optional nodes. Both absent counts as equal.
func nodePtrEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
