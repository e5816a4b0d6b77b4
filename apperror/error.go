// Package apperror defines the error kinds shared by the clock widget.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to surface it.
type Kind string

const (
	KindResolutionFailure     Kind = "RESOLUTION_FAILURE"
	KindCapacityExceeded      Kind = "CAPACITY_EXCEEDED"
	KindDuplicateSubscription Kind = "DUPLICATE_SUBSCRIPTION"
	KindInvalidOperation      Kind = "INVALID_OPERATION"
	KindUnparseableInput      Kind = "UNPARSEABLE_INPUT"
	KindStorageFailure        Kind = "STORAGE_FAILURE"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrResolutionFailure     = &Error{Kind: KindResolutionFailure, Message: "timezone could not be resolved"}
	ErrCapacityExceeded      = &Error{Kind: KindCapacityExceeded, Message: "clock limit reached"}
	ErrDuplicateSubscription = &Error{Kind: KindDuplicateSubscription, Message: "timezone already added"}
	ErrInvalidOperation      = &Error{Kind: KindInvalidOperation, Message: "operation not allowed"}
	ErrUnparseableInput      = &Error{Kind: KindUnparseableInput, Message: "input is not a date/time"}
	ErrStorageFailure        = &Error{Kind: KindStorageFailure, Message: "storage unavailable"}
)

// Error is a classified widget error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind that wraps err
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
