// Package errs defines the error taxonomy shared by every subsystem.
//
// Errors carry a Kind so callers can branch on the failure class (retry,
// failover, surface to the user) without string matching. Kinds map to the
// stable error codes returned at the protocol boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

// Error kinds.
const (
	KindConfig       Kind = "config"
	KindIo           Kind = "io"
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindEmbedding    Kind = "embedding"
	KindVectorStore  Kind = "vector_store"
	KindCache        Kind = "cache"
	KindParse        Kind = "parse"
	KindRateLimited  Kind = "rate_limited"
	KindCircuitOpen  Kind = "circuit_open"
	KindCrypto       Kind = "crypto"
	KindBackpressure Kind = "backpressure"
	KindInternal     Kind = "internal"
)

// Error is the single error type used across the core. It wraps an optional
// cause and records the failure class.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that adds kind and context to a cause.
// A nil cause yields nil.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, message: message, cause: cause}
}

// Wrapf creates an Error with a formatted context message around a cause.
func Wrapf(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the context message without the cause chain.
func (e *Error) Message() string { return e.message }

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap returns the cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.kind == other.kind
}

// KindOf extracts the Kind from an error chain. Errors outside the taxonomy
// report KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// IsKind reports whether any Error in the chain carries the given kind, not
// just the outermost one. Rewrapping never hides an inner failure class from
// callers that branch on it.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.kind == kind {
			return true
		}
		err = e.Unwrap()
	}
	return false
}

// Code returns the stable protocol-level error code for an error.
func Code(err error) string {
	return string(KindOf(err))
}

// Retryable reports whether the failure class counts as a provider fault
// that the router may retry against another candidate.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindEmbedding, KindVectorStore, KindCircuitOpen:
		return true
	default:
		return false
	}
}

// ErrAllProvidersFailed is returned by the router when every candidate
// provider was skipped or failed.
var ErrAllProvidersFailed = New(KindNetwork, "all providers failed")
