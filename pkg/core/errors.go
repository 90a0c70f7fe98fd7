// Package core provides the RecallMem client: the memory manager façade that
// composes storage, scoring, pattern detection and retention.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oceanbase/recallmem-go/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested entry was not found.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrValidation indicates malformed input. It is reported before any I/O.
	ErrValidation = errors.New("validation failed")

	// ErrStorage indicates that a store call failed.
	ErrStorage = errors.New("storage operation failed")

	// ErrPartialDeletion indicates that some, but not necessarily all, of a
	// batch of deletions failed.
	ErrPartialDeletion = errors.New("partial deletion")

	// ErrUnavailable indicates that the store is refusing calls, for example
	// because its circuit breaker is open.
	ErrUnavailable = storage.ErrUnavailable

	// ErrClosed indicates that the client has been closed.
	ErrClosed = errors.New("client is closed")
)

// ValidationError describes a rejected argument.
type ValidationError struct {
	// Field names the offending argument.
	Field string

	// Reason says what is wrong with it.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StorageError wraps a failed store call. The engine never retries it.
type StorageError struct {
	// Op is the store operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// PartialDeletionError reports a cleanup or batch delete in which some ids
// could not be deleted. The entries that were deleted stay deleted.
type PartialDeletionError struct {
	// Deleted is the number of entries removed.
	Deleted int

	// FailedIDs lists the ids that could not be deleted.
	FailedIDs []string

	// Errs maps each failed id to its failure.
	Errs map[string]error
}

func (e *PartialDeletionError) Error() string {
	const maxShown = 5
	shown := e.FailedIDs
	suffix := ""
	if len(shown) > maxShown {
		shown = shown[:maxShown]
		suffix = ", ..."
	}
	return fmt.Sprintf("deleted %d entries, %d failed: [%s%s]",
		e.Deleted, len(e.FailedIDs), strings.Join(shown, ", "), suffix)
}

// Is matches ErrPartialDeletion.
func (e *PartialDeletionError) Is(target error) bool {
	return target == ErrPartialDeletion
}

// Unwrap returns the per-id failures in FailedIDs order.
func (e *PartialDeletionError) Unwrap() []error {
	errs := make([]error, 0, len(e.FailedIDs))
	for _, id := range e.FailedIDs {
		if err := e.Errs[id]; err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Recall",
//	    Err: &ValidationError{Field: "limit", Reason: "must be positive"},
//	}
//	// Error() returns: "recallmem: Recall: invalid limit: must be positive"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "recallmem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("recallmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Add", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
