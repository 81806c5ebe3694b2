// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "errors"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes client errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindAuth: missing or rejected credentials.
	KindAuth
	// KindNetwork: transport failed before any event arrived.
	KindNetwork
	// KindTimeout: request or stream inactivity deadline exceeded.
	KindTimeout
	// KindNotFound: the referenced conversation does not exist.
	KindNotFound
	// KindValidation: the server rejected the turn's inputs.
	KindValidation
	// KindAppContext: the bound app no longer exists or is inaccessible.
	KindAppContext
	// KindStream: malformed event or stream protocol violation.
	KindStream
)

// String returns a short name for the kind, used in user-facing messages.
func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindAppContext:
		return "app_context"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Error is a typed error from the platform client.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, api.ErrTimeout)
// works regardless of the wrapped message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for easy checking.
var (
	ErrAuth       = &Error{Kind: KindAuth, Message: "authentication required"}
	ErrNetwork    = &Error{Kind: KindNetwork, Message: "network failure"}
	ErrTimeout    = &Error{Kind: KindTimeout, Message: "request timed out"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "conversation not found"}
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrAppContext = &Error{Kind: KindAppContext, Message: "app context unavailable"}
	ErrStream     = &Error{Kind: KindStream, Message: "stream protocol violation"}
)

// KindOf extracts the ErrorKind from an error chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}
