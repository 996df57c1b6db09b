// Package errs provides the unified error type used across all of bucketscope.
//
// Every subsystem (kv, objstore, session, listcache, bucketsize, …) wraps its
// native errors into *errs.Error before returning them to callers. Callers use
// the Is* predicates to handle errors without importing driver-specific
// packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindUnavailable, "redis get failed", redisErr)
//
//	// In a handler — check error kind:
//	if errs.IsNotAuthenticated(err) {
//	    http.Error(w, "not authenticated", http.StatusUnauthorized)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Redis, MinIO, in-memory, …) map their native errors to one
// of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no key, no object, no bucket
	ErrKindUnavailable              // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindStoreFailed              // storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // upstream access denied
	ErrKindNotAuthenticated         // session absent or expired
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindUnavailable:
		return "unavailable"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindStoreFailed:
		return "store_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindNotAuthenticated:
		return "not_authenticated"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all bucketscope subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (missing key, missing object, unknown bucket, …).
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsUnavailable reports whether err is a connectivity failure against a
// backing store. Callers treat this as transient: the listing cache degrades
// to bypass, session lookups surface as not-authenticated.
func IsUnavailable(err error) bool {
	return kindOf(err) == ErrKindUnavailable
}

// IsStoreFailed reports whether err is a backend operation failure
// (storage I/O error, protocol error, …).
func IsStoreFailed(err error) bool {
	return kindOf(err) == ErrKindStoreFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure from
// the upstream object store. Terminal for bucket-size aggregation: the
// result is cached as inaccessible rather than retried.
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// IsNotAuthenticated reports whether err means the caller's session is
// absent or expired.
func IsNotAuthenticated(err error) bool {
	return kindOf(err) == ErrKindNotAuthenticated
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
