// Package service provides business logic implementations.
package service

import (
	"errors"
	"fmt"

	"cleanup-quest-bot/internal/lifecycle"
	"cleanup-quest-bot/internal/repository"
)

// Error kinds returned by every engine operation. Match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	ErrForbidden         = errors.New("forbidden")
	ErrValidationFailed  = errors.New("validation failed")
	// ErrAlreadyCompleted is benign: the current mission state is returned with it.
	ErrAlreadyCompleted = errors.New("mission already completed")
	// ErrConflictRetry means a concurrent update won; the whole operation may be retried.
	ErrConflictRetry = errors.New("concurrent update, retry")
)

// Kind is a stable name for an error kind, used by the presentation layer.
type Kind string

const (
	KindNone              Kind = ""
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindForbidden         Kind = "forbidden"
	KindValidationFailed  Kind = "validation_failed"
	KindAlreadyCompleted  Kind = "already_completed"
	KindConflictRetry     Kind = "conflict_retry"
	KindInternal          Kind = "internal"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrValidationFailed):
		return KindValidationFailed
	case errors.Is(err, ErrAlreadyCompleted):
		return KindAlreadyCompleted
	case errors.Is(err, ErrConflictRetry):
		return KindConflictRetry
	default:
		return KindInternal
	}
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// storeErr translates repository sentinels into engine error kinds.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%s: %w", what, ErrConflictRetry)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w: already exists", what, ErrValidationFailed)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
