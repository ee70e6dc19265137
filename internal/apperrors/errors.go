// Package apperrors defines the error taxonomy shared by all BrainBox
// components. Every operation returns a plain error; handlers map the kind
// to an HTTP status, callers branch on IsTransient for retries.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and the HTTP layer.
type Kind int

const (
	// KindInternal is an unexpected failure, surfaced as a generic 500.
	KindInternal Kind = iota
	// KindNotFound means a brain or file is absent.
	KindNotFound
	// KindAlreadyExists means a duplicate brain name or file in a brain.
	KindAlreadyExists
	// KindUnsupported means a PDF produced zero chunks or all chunks failed embedding.
	KindUnsupported
	// KindTransient is a network/rate-limit/timeout failure on a dependency.
	KindTransient
	// KindInvalid is a malformed request payload.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnsupported:
		return "unsupported"
	case KindTransient:
		return "transient"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Error carries a kind, a human message, and an optional wrapped cause.
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

// E builds a new taxonomy error.
func E(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a taxonomy error around a cause.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether the caller may retry the operation.
func IsTransient(err error) bool {
	return Is(err, KindTransient)
}
