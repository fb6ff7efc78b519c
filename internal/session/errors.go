package session

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport layer can pick a status code
// without string-matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindConflict      // operation invalid for the session's current status
	KindUnprocessable // cross-entity reference mismatch (choice vs question)
	KindValidation
	KindIntegrity // referenced catalog row vanished; treat as fatal
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from any error in the chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func notFound(msg string) error      { return &Error{Kind: KindNotFound, Msg: msg} }
func forbidden(msg string) error     { return &Error{Kind: KindForbidden, Msg: msg} }
func conflict(msg string) error      { return &Error{Kind: KindConflict, Msg: msg} }
func unprocessable(msg string) error { return &Error{Kind: KindUnprocessable, Msg: msg} }
func invalid(msg string) error       { return &Error{Kind: KindValidation, Msg: msg} }

func integrity(msg string, err error) error {
	return &Error{Kind: KindIntegrity, Msg: msg, Err: err}
}
