// Package apperr defines the machine-readable error kinds returned by the
// marketplace services. Handlers translate kinds into HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound             Kind = "NotFound"
	InsufficientStock    Kind = "InsufficientStock"
	InsufficientQuantity Kind = "InsufficientQuantity"
	InvalidState         Kind = "InvalidState"
	InvalidTransition    Kind = "InvalidTransition"
	Unauthorized         Kind = "Unauthorized"
	DuplicateNegotiation Kind = "DuplicateNegotiation"
	ValidationError      Kind = "ValidationError"
	Internal             Kind = "Internal"
)

// Error carries a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, apperr.New(apperr.NotFound, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap marks err as Internal, keeping it for logs.
func Wrap(err error, message string) *Error {
	return &Error{Kind: Internal, Message: message, Err: err}
}

// KindOf returns the Kind of err; untyped errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-facing message; Internal errors never expose their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "Internal Server Error"
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
