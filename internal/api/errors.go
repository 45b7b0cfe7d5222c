package api

import (
	"errors"
	"fmt"
)

const (
	// ErrTransport covers dial failures, timeouts and anything else that
	// kept a response from arriving.
	ErrTransport ErrorKind = "transport"
	// ErrRemote means the backend answered and refused: a non-2xx status
	// or an envelope with success=false.
	ErrRemote ErrorKind = "remote"
	// ErrDecode means the response arrived but its body was not the
	// envelope we expect.
	ErrDecode ErrorKind = "decode"
)

type ErrorKind string

// Error is the typed failure every backend call returns. Handlers branch
// on Kind to phrase the notification; Status carries the HTTP code for
// remote refusals.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("backend %s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("backend %s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("backend %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Transport(msg string, err error) *Error {
	return &Error{Kind: ErrTransport, Message: msg, Err: err}
}

func Remote(status int, msg string) *Error {
	return &Error{Kind: ErrRemote, Status: status, Message: msg}
}

func Decode(msg string, err error) *Error {
	return &Error{Kind: ErrDecode, Message: msg, Err: err}
}

// KindOf extracts the taxonomy kind from any error chain; empty when the
// chain holds no backend error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
