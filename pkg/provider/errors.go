package provider

import "fmt"

// DuplicateIdentityError is returned when two providers of one builder
// scope share an identity.
type DuplicateIdentityError struct {
	Identity string
	Kind     string // "row", "header", "footer" or "section"
}

// Error implements the error interface.
func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("provider: duplicate %s identity %q", e.Kind, e.Identity)
}

// Code returns the diagnostic code.
func (e *DuplicateIdentityError) Code() string {
	return "F001"
}

// UnresolvedIdentityError is returned when a node names a provider that was
// never registered.
type UnresolvedIdentityError struct {
	Identity string
}

// Error implements the error interface.
func (e *UnresolvedIdentityError) Error() string {
	return fmt.Sprintf("provider: identity %q is not registered", e.Identity)
}

// Code returns the diagnostic code.
func (e *UnresolvedIdentityError) Code() string {
	return "F002"
}

// TypeMismatchError is returned when a node value does not have the type its
// provider expects.
type TypeMismatchError struct {
	Identity string
	Want     string
	Got      string
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("provider: %q expects values of type %s, got %s", e.Identity, e.Want, e.Got)
}

// Code returns the diagnostic code.
func (e *TypeMismatchError) Code() string {
	return "F004"
}

// UnsupportedProviderError is returned when Register receives a provider
// that is neither a row nor a part provider.
type UnsupportedProviderError struct {
	Identity string
	Type     string
}

// Error implements the error interface.
func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("provider: %q of type %s provides neither rows nor a header/footer", e.Identity, e.Type)
}

// Code returns the diagnostic code.
func (e *UnsupportedProviderError) Code() string {
	return "F005"
}
