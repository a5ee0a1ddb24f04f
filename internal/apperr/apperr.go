// Package apperr defines the error kinds returned by services so handlers can
// map them to HTTP responses without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindForbidden
	KindUnauthorized
	KindNotFound
	KindTargetNotFound
	KindValidation
	KindAlreadyAtHighestLevel
	KindNotDue
	KindExempt
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindTargetNotFound:
		return "target_not_found"
	case KindValidation:
		return "validation"
	case KindAlreadyAtHighestLevel:
		return "already_at_highest_level"
	case KindNotDue:
		return "not_due"
	case KindExempt:
		return "exempt"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is a classified error with a user-safe message.
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

// Is matches on Kind so errors.Is(err, apperr.ErrForbidden) works for any message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrTargetNotFound        = &Error{Kind: KindTargetNotFound}
	ErrValidation            = &Error{Kind: KindValidation}
	ErrAlreadyAtHighestLevel = &Error{Kind: KindAlreadyAtHighestLevel}
	ErrNotDue                = &Error{Kind: KindNotDue}
	ErrExempt                = &Error{Kind: KindExempt}
	ErrConflict              = &Error{Kind: KindConflict}
	ErrPersistence           = &Error{Kind: KindPersistence}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error    { return newf(KindForbidden, format, args...) }
func Unauthorized(format string, args ...any) error { return newf(KindUnauthorized, format, args...) }
func NotFound(format string, args ...any) error     { return newf(KindNotFound, format, args...) }
func TargetNotFound(format string, args ...any) error {
	return newf(KindTargetNotFound, format, args...)
}
func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }
func NotDue(format string, args ...any) error     { return newf(KindNotDue, format, args...) }
func Exempt(format string, args ...any) error     { return newf(KindExempt, format, args...) }
func AlreadyAtHighestLevel(format string, args ...any) error {
	return newf(KindAlreadyAtHighestLevel, format, args...)
}

// Conflict wraps a lost optimistic-concurrency race.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Persistence wraps a store failure. The message stays generic; err is kept for logs.
func Persistence(message string, err error) error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindPersistence && e.Kind != KindInternal {
		return e.Message
	}
	return "Server error"
}
