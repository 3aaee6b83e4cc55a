package service

import (
	"fmt"
)

// Kind classifies a client-facing failure
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindExpired      Kind = "expired"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindUnavailable  Kind = "unavailable"
)

// Error is a client error: it is reported to the caller as-is and never retried
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrExpired      = &Error{Kind: KindExpired, Message: "expired"}
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrUnavailable  = &Error{Kind: KindUnavailable, Message: "unavailable"}
)

func newError(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

func InvalidState(format string, args ...interface{}) error {
	return newError(KindInvalidState, format, args...)
}

func Expired(format string, args ...interface{}) error {
	return newError(KindExpired, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newError(KindUnauthorized, format, args...)
}

func Unavailable(format string, args ...interface{}) error {
	return newError(KindUnavailable, format, args...)
}
