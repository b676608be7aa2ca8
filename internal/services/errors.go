package services

import "errors"

// Kind classifies failures so transports can map them without string matching.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindTransport     Kind = "transport"
)

// Error is returned by every service operation that fails for a domain reason.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind of a service error.
func KindOf(err error) (Kind, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func validationError(msg string) error    { return &Error{Kind: KindValidation, Msg: msg} }
func authorizationError(msg string) error { return &Error{Kind: KindAuthorization, Msg: msg} }
func notFoundError(msg string) error      { return &Error{Kind: KindNotFound, Msg: msg} }
func conflictError(msg string) error      { return &Error{Kind: KindConflict, Msg: msg} }
