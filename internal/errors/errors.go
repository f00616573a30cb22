// Package errors provides centralized error definitions and error handling utilities
// for basetemp. It defines sentinel errors, the two caller-visible error types of
// the numbered-directory subsystem, and classification helpers.
//
// # Error Types
//
//   - ResourceBusyError: a cleanup lock already exists in the target directory.
//     Callers are expected to branch on it (wait, pick another directory, or
//     treat the directory as owned elsewhere). It is never retried internally.
//   - AllocationError: a numbered directory could not be allocated, either
//     because bounded retries were exhausted or because the root could not be
//     listed or written.
//
// Garbage collection never returns errors; see package gc.
//
// # Usage
//
//	h, err := cleanuplock.Create(dir)
//	if errors.Is(err, errors.ErrResourceBusy) {
//	    // owned elsewhere
//	}
//
//	var allocErr *errors.AllocationError
//	if errors.As(err, &allocErr) {
//	    fmt.Println(allocErr.Attempts)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrResourceBusy indicates that a directory already holds a cleanup lock.
	ErrResourceBusy = New("resource busy")
	// ErrAllocationExhausted indicates that every allocation attempt collided
	// with a concurrently created sibling.
	ErrAllocationExhausted = New("numbered directory allocation exhausted")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// ResourceBusyError is returned when a cleanup lock cannot be created because
// one already exists in the directory.
//
// Example:
//
//	err := errors.NewResourceBusyError("/tmp/basetemp/run-4")
//	fmt.Println(err) // "cannot create lockfile in /tmp/basetemp/run-4"
type ResourceBusyError struct {
	baseError
	Dir string
}

// NewResourceBusyError creates a new ResourceBusyError for dir.
func NewResourceBusyError(dir string) *ResourceBusyError {
	return &ResourceBusyError{
		baseError: baseError{
			message:    "cannot create lockfile in " + dir,
			retryable:  false,
			userFacing: true,
		},
		Dir: dir,
	}
}

// WithCause attaches the underlying filesystem error.
func (e *ResourceBusyError) WithCause(cause error) *ResourceBusyError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ResourceBusyError) Error() string {
	return e.message
}

// Is matches ErrResourceBusy, any *ResourceBusyError, or the wrapped cause.
func (e *ResourceBusyError) Is(target error) bool {
	if target == ErrResourceBusy {
		return true
	}
	if _, ok := target.(*ResourceBusyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AllocationError is returned when a numbered directory could not be created
// under Root with Prefix.
//
// Example:
//
//	err := errors.NewAllocationError("/tmp/basetemp", "run-", nil).WithAttempts(10)
//	fmt.Println(err) // "allocation error [root=/tmp/basetemp, prefix=run-, attempts=10]: numbered directory allocation exhausted"
type AllocationError struct {
	baseError
	Root     string
	Prefix   string
	Attempts int
}

// NewAllocationError creates a new AllocationError. A nil cause means retries
// were exhausted.
func NewAllocationError(root, prefix string, cause error) *AllocationError {
	message := "could not create numbered directory"
	if cause == nil {
		message = ErrAllocationExhausted.Error()
	}
	return &AllocationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			retryable:  cause == nil,
			userFacing: true,
		},
		Root:   root,
		Prefix: prefix,
	}
}

// WithAttempts records how many creation attempts were made.
func (e *AllocationError) WithAttempts(n int) *AllocationError {
	e.Attempts = n
	return e
}

// Error returns the formatted error message.
func (e *AllocationError) Error() string {
	var parts []string
	if e.Root != "" {
		parts = append(parts, fmt.Sprintf("root=%s", e.Root))
	}
	if e.Prefix != "" {
		parts = append(parts, fmt.Sprintf("prefix=%s", e.Prefix))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}

	prefix := "allocation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("allocation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is matches any *AllocationError, ErrAllocationExhausted when retries ran
// out, or the wrapped cause.
func (e *AllocationError) Is(target error) bool {
	if _, ok := target.(*AllocationError); ok {
		return true
	}
	if target == ErrAllocationExhausted && e.cause == nil {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

type classified interface {
	IsRetryable() bool
	IsUserFacing() bool
}

// IsRetryable reports whether err is transient. Allocation exhaustion is
// retryable; a busy lock is not, since the caller must decide what to do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var c classified
	if As(err, &c) {
		return c.IsRetryable()
	}
	return false
}

// IsUserFacing reports whether err carries a message safe to show users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var c classified
	if As(err, &c) {
		return c.IsUserFacing()
	}
	return false
}

// Wrap annotates err with message, returning nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf annotates err with a formatted message, returning nil when err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
