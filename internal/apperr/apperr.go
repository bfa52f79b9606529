// Package apperr classifies the errors that engines report back to a
// connection. Every sentinel error in the service is an *Error so the
// websocket layer can turn it into an error envelope with a stable code.
package apperr

import "errors"

// Kind is the category reported to clients in the error envelope.
type Kind string

const (
	Unauthorized    Kind = "unauthorized"
	InvalidState    Kind = "invalid_state"
	NotFound        Kind = "not_found"
	Capacity        Kind = "capacity"
	InvalidArgument Kind = "invalid_argument"
	RateLimited     Kind = "rate_limited"
	Internal        Kind = "internal"
)

// Error is a classified, client-safe error.
type Error struct {
	Kind Kind
	Msg  string
}

// New creates a classified error. Use it for package-level sentinels.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	return e.Msg
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Message returns the client-safe message for err. Unclassified errors are
// reported generically so infrastructure details never reach a client.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Msg
	}
	return "internal server error"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
