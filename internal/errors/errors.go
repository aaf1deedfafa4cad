// Package errors re-exports github.com/cockroachdb/errors and defines the
// error classes shared by the store, the scheduling service and the executor.
//
// Classify with Mark, test with Is:
//
//	return errors.Mark(errors.Wrapf(err, "claim schedule %d", id), errors.ErrTransient)
//	...
//	if errors.Is(err, errors.ErrTransient) { retry() }
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
	Join         = crdb.Join
)

var (
	WithHint       = crdb.WithHint
	WithHintf      = crdb.WithHintf
	WithDetail     = crdb.WithDetail
	WithDetailf    = crdb.WithDetailf
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

var (
	// ErrValidation: bad content reference, past time without force, malformed recurrence.
	ErrValidation = New("validation failed")

	// ErrNotFound: the schedule, template or content item does not exist.
	ErrNotFound = New("not found")

	// ErrConflict: the schedule already left PENDING.
	ErrConflict = New("conflict")

	// ErrExecution: a content repository failed to publish.
	ErrExecution = New("execution failed")

	// ErrTransient: store unreachable or another infrastructure hiccup; safe to retry.
	ErrTransient = New("transient failure")
)

// Validationf builds a validation error carrying a user facing message.
func Validationf(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrValidation)
}

// NotFoundf builds a not-found error for the named resource.
func NotFoundf(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) error {
	return Mark(Newf(format, args...), ErrConflict)
}

// Transient marks err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrTransient)
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	return Is(err, ErrTransient)
}
