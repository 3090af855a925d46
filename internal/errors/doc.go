// Package errors renders flix errors for the command line.
//
// Every configuration error raised by the library carries a code through a
// Code() string method:
//
//	F001  duplicate provider identity
//	F002  unresolved provider identity
//	F003  duplicate node key within a section
//	F004  provider value type mismatch
//	F005  unsupported provider kind
//
// The registry adds a message, a detail and a hint for each code. FromError
// looks the code up for any error in a wrap chain, and maps the library's
// sentinel errors to their own codes:
//
//	err := errors.FromError(builderErr)
//	fmt.Fprint(os.Stderr, err.Format())
//	// ERROR F003: Duplicate key in section
//	//
//	//   Two rows of one section produced the same key. ...
//	//
//	//   Hint: Return a unique key from the provider's key function.
package errors
