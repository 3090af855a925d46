// Package provider defines list content providers and the registry that
// routes widget callbacks back to them.
//
// A provider is a capability bundle keyed by a fixed identity. Row providers
// produce a stream of row nodes; header and footer providers produce a
// stream of optional part nodes. Optional capabilities (Sizer, Configurer,
// Selecter, Deleter, Editor) are discovered with checked type assertions at
// dispatch time, so a provider implements only what it needs.
//
// # Typed Providers
//
// Row, Rows and Part wrap a typed value stream and typed handlers:
//
//	users := provider.NewRows("users", usersStream,
//	    func(u User) string { return u.ID },
//	    provider.WithHeight(func(_ node.IndexPath, u User) float64 { return 44 }),
//	    provider.WithSelect(func(_ node.IndexPath, u User) { open(u) }),
//	)
//
// Node values are downcast back to the provider's type on every callback. A
// value of the wrong type is reported as a *TypeMismatchError.
//
// # Registry
//
// A Registry holds the providers of one builder scope. Identities are unique
// across rows, headers and footers; Register returns a *DuplicateIdentityError
// on collision. Dispatch methods resolve a node's provider identity and call
// the matching capability.
package provider
