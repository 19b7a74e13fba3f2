// Package common provides shared utilities and types used across the engine.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Engine error taxonomy.
var (
	// ErrNotFound indicates an unknown budget, account, category, or
	// transaction. Callers should not retry.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntry indicates a uniqueness violation.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrNoOpDelta indicates an assignment delta of zero, which is never
	// stored.
	ErrNoOpDelta = errors.New("assignment delta of zero is a no-op")

	// ErrStaleRevision indicates an amend against an outdated transaction
	// revision. The caller must re-fetch and retry; the engine never
	// retries on its own.
	ErrStaleRevision = errors.New("stale transaction revision")

	// ErrBudgetBusy indicates the budget's mutation section could not be
	// acquired within its bounded wait.
	ErrBudgetBusy = errors.New("budget is busy")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports a malformed input: a bad split, a cross-budget
// reference, or a missing field. SplitIndex is the offending split's
// position, or -1 when the problem is not split-specific.
type ValidationError struct {
	Msg        string
	SplitIndex int
}

func (e *ValidationError) Error() string {
	if e.SplitIndex >= 0 {
		return fmt.Sprintf("validation failed: split %d: %s", e.SplitIndex, e.Msg)
	}
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

// NewValidationError creates a ValidationError not tied to a split.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), SplitIndex: -1}
}

// NewSplitError creates a ValidationError naming the offending split index.
func NewSplitError(index int, format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), SplitIndex: index}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError reports an I/O failure during persist or recompute. The
// coordinator guarantees no partial commit on this path.
type StorageError struct {
	Err error
	Op  string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage wraps a driver error as a StorageError. A nil err returns nil.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageFailure reports whether err is a StorageError.
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Concurrency
// conflicts and validation errors are deliberately not retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
