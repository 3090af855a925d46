package errors

import (
	"errors"
	"fmt"

	"github.com/vango-dev/flix/pkg/archive"
	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/client"
	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/pipeline"
	"github.com/vango-dev/flix/pkg/server"
	"github.com/vango-dev/flix/pkg/widget"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryRuntime  Category = "runtime"
	CategoryProtocol Category = "protocol"
	CategoryArchive  Category = "archive"
	CategoryCLI      Category = "cli"
)

// FlixError is a coded error with an explanation and a fix hint.
type FlixError struct {
	// Code is a unique error identifier (e.g., "F001").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example is code showing the correct approach.
	Example string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *FlixError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *FlixError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion sets the fix hint.
func (e *FlixError) WithSuggestion(s string) *FlixError {
	e.Suggestion = s
	return e
}

// WithExample sets a code example.
func (e *FlixError) WithExample(ex string) *FlixError {
	e.Example = ex
	return e
}

// WithDetail sets the detailed explanation.
func (e *FlixError) WithDetail(d string) *FlixError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *FlixError) Wrap(err error) *FlixError {
	e.Wrapped = err
	return e
}

// New creates a FlixError from a registered code.
func New(code string) *FlixError {
	t, ok := registry[code]
	if !ok {
		return &FlixError{Code: code, Message: "Unknown error"}
	}
	return &FlixError{
		Code:       code,
		Category:   t.Category,
		Message:    t.Message,
		Detail:     t.Detail,
		Suggestion: t.Suggestion,
	}
}

// Newf creates an uncoded error with a formatted message.
func Newf(category Category, format string, args ...any) *FlixError {
	return &FlixError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// coder is implemented by the library's typed configuration errors.
type coder interface {
	error
	Code() string
}

// sentinels maps library sentinel errors to codes.
var sentinels = []struct {
	err  error
	code string
}{
	{builder.ErrClosed, "F010"},
	{pipeline.ErrClosed, "F010"},
	{widget.ErrIndexOutOfRange, "F011"},
	{diff.ErrScriptMismatch, "F012"},
	{server.ErrSessionClosed, "F020"},
	{server.ErrSendQueueFull, "F021"},
	{client.ErrClosed, "F022"},
	{archive.ErrUnsupportedScheme, "F030"},
	{archive.ErrNotFound, "F031"},
	{archive.ErrInvalidKey, "F032"},
}

// FromError returns err as a FlixError. Coded errors and known sentinels
// anywhere in the wrap chain select the template; anything else is wrapped
// with fallback.
func FromError(err error, fallback ...string) *FlixError {
	if err == nil {
		return nil
	}
	var fe *FlixError
	if errors.As(err, &fe) {
		return fe
	}
	var c coder
	if errors.As(err, &c) {
		if _, ok := registry[c.Code()]; ok {
			return New(c.Code()).Wrap(err)
		}
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return New(s.code).Wrap(err)
		}
	}
	if len(fallback) > 0 {
		return New(fallback[0]).Wrap(err)
	}
	return &FlixError{Category: CategoryRuntime, Message: err.Error()}
}
