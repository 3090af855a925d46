// Package node provides the identity model that list reconciliation operates on.
//
// A Node is one unit of list content: a row, a section header or a section
// footer. Every node carries the identity of the provider that produced it, a
// stable key that identifies the underlying entity across snapshots, and an
// opaque value that is compared for equality to detect content changes.
//
// # Identity and Equality
//
// Matching uses ID, the (provider, key) pair. Equality uses the key and the
// value only:
//
//	a := node.New("users", "42", User{Name: "Ann"})
//	b := node.New("users", "42", User{Name: "Bob"})
//	a.ID() == b.ID() // true: same entity
//	a.Equal(b)       // false: content changed, reload in place
//
// Two providers must never emit the same key. The reconciler does not detect
// this and the resulting edit script is undefined.
//
// # Snapshots
//
// A Snapshot is the whole list at one instant: an ordered slice of Sections,
// each with an optional header, an optional footer and ordered rows. Snapshots
// are treated as immutable values. Validate reports duplicate identities.
package node
