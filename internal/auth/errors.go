// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Repository sentinels. Implementations wrap these so callers can match with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("username already exists")
)

// Kind classifies every error returned by Service. The set is closed.
type Kind uint8

const (
	kindNone Kind = iota

	// KindConfiguration means the token signing secret is not configured.
	KindConfiguration
	// KindDuplicateUsername means registration hit an existing username.
	KindDuplicateUsername
	// KindInvalidCredentials covers both an unknown username and a wrong password.
	KindInvalidCredentials
	// KindPersistence means the credential store failed.
	KindPersistence
	// KindInternal is everything else.
	KindInternal
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindDuplicateUsername:
		return "DuplicateUsername"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindPersistence:
		return "PersistenceError"
	case KindInternal:
		return "InternalError"
	default:
		return "None"
	}
}

// Code returns the oops error code attached to errors of this kind.
func (k Kind) Code() string {
	switch k {
	case KindConfiguration:
		return "AUTH_CONFIGURATION"
	case KindDuplicateUsername:
		return "AUTH_DUPLICATE_USERNAME"
	case KindInvalidCredentials:
		return "AUTH_INVALID_CREDENTIALS"
	case KindPersistence:
		return "AUTH_PERSISTENCE"
	case KindInternal:
		return "AUTH_INTERNAL"
	default:
		return ""
	}
}

// Error is a classified auth failure. Message is safe to show to a caller;
// the underlying cause is only reachable through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// Error implements error.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same kind, so the exported
// sentinels below match any error of their kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is matching, one per kind.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration, Message: "token signing secret is not configured"}
	ErrDuplicateUsername  = &Error{Kind: KindDuplicateUsername, Message: "username already exists"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid username or password"}
	ErrPersistence        = &Error{Kind: KindPersistence, Message: "credential store failure"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal error"}
)

// KindOf returns the kind of err. Unclassified non-nil errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return kindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}

// classify builds a coded error of the given kind around cause.
// kv is extra oops context, e.g. "operation", "create user".
func classify(kind Kind, message string, cause error, kv ...any) error {
	return oops.
		Code(kind.Code()).
		With("kind", kind.String()).
		With(kv...).
		Wrap(&Error{Kind: kind, Message: message, cause: cause})
}
