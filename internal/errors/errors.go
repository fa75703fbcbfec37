// Package errors provides centralized error definitions and error handling utilities
// for hostbridge. It defines the bridge's sentinel errors, its lifecycle and fault
// error types, and classification helpers used at the bridge boundary.
//
// # Error Taxonomy
//
// The bridge distinguishes three kinds of failure:
//
//   - Cancellation: not an error. [IsCancellation] recognizes it so that it can be
//     swallowed at the bridge boundary instead of reaching an error callback.
//   - Operation failure: whatever the wrapped operation returned. It is delivered to
//     the error callback untouched; this package never wraps it.
//   - Misuse: a runner, subscription or accessor used after its owner was torn down,
//     or an illegal lifecycle transition. Reported as a [LifecycleError].
//
// Unexpected panics inside a wrapped operation are recovered and turned into a
// [PanicError] so they can be routed to the error callback like any other failure.
//
// # Usage
//
//	// Misuse fault
//	panic(errors.NewLifecycleError("runner", "start", errors.ErrDisposed).WithState("disposed"))
//
//	// Classification
//	if errors.IsCancellation(err) { return }
//	var lerr *errors.LifecycleError
//	if errors.As(err, &lerr) { ... }
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
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

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lifecycle sentinel errors
var (
	// ErrNotStarted indicates that the dependency graph is not started.
	ErrNotStarted = New("bridge not started")
	// ErrAlreadyStarted indicates that the dependency graph is already starting or started.
	ErrAlreadyStarted = New("bridge already started")
	// ErrNotConfigured indicates that no endpoint has been configured.
	ErrNotConfigured = New("bridge endpoint not configured")
	// ErrScopeClosed indicates that an owner scope has already been closed.
	ErrScopeClosed = New("scope closed")
	// ErrDisposed indicates that a runner or subscription has been disposed.
	ErrDisposed = New("disposed")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BridgeError is the base interface for all hostbridge errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type BridgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
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

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
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
// Bridge Errors
// -----------------------------------------------------------------------------

// LifecycleError reports misuse of a bridge component: using a runner or
// subscription after it was disposed, minting handles from a stopped graph, or
// requesting an illegal state transition.
//
// Example:
//
//	err := errors.NewLifecycleError("bridge", "create_session", errors.ErrNotStarted).WithState("stopped")
//	fmt.Println(err) // "lifecycle error [component=bridge, op=create_session, state=stopped]: bridge not started"
type LifecycleError struct {
	baseError
	Component string
	Operation string
	State     string
}

// NewLifecycleError creates a new LifecycleError.
func NewLifecycleError(component, operation string, cause error) *LifecycleError {
	return &LifecycleError{
		baseError: baseError{
			message:    "",
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: false,
		},
		Component: component,
		Operation: operation,
	}
}

// WithState records the lifecycle state observed when the misuse happened.
func (e *LifecycleError) WithState(state string) *LifecycleError {
	e.State = state
	return e
}

// WithMessage adds a human-readable detail to the error.
func (e *LifecycleError) WithMessage(msg string) *LifecycleError {
	e.message = msg
	return e
}

// Error returns the formatted error message.
func (e *LifecycleError) Error() string {
	var parts []string
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "lifecycle error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("lifecycle error [%s]", strings.Join(parts, ", "))
	}

	switch {
	case e.message != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	case e.message != "":
		return fmt.Sprintf("%s: %s", prefix, e.message)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *LifecycleError) Is(target error) bool {
	if _, ok := target.(*LifecycleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PanicError carries a panic recovered from a wrapped operation so that it can
// be delivered to an error callback instead of crashing the host.
type PanicError struct {
	baseError
	Value any
	Stack []byte
}

// NewPanicError creates a new PanicError from a recovered value and its stack.
// If the recovered value is itself an error, it becomes the cause.
func NewPanicError(value any, stack []byte) *PanicError {
	var cause error
	if err, ok := value.(error); ok {
		cause = err
	}
	return &PanicError{
		baseError: baseError{
			message:    fmt.Sprintf("operation panicked: %v", value),
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: false,
		},
		Value: value,
		Stack: stack,
	}
}

// Error returns the panic message. The stack is intentionally left out.
func (e *PanicError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *PanicError) Is(target error) bool {
	if _, ok := target.(*PanicError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must use a supported scheme").WithField("endpoint.url").WithValue("ftp://x")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds the field name to the error.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var msg string
	if e.Field != "" {
		msg = fmt.Sprintf("validation error on %s: %s", e.Field, e.message)
	} else {
		msg = fmt.Sprintf("validation error: %s", e.message)
	}
	if e.Value != nil {
		msg = fmt.Sprintf("%s (got: %v)", msg, e.Value)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that exceeded its time limit.
//
// Example:
//
//	err := errors.NewTimeoutError("bridge start", 10*time.Second)
//	fmt.Println(err) // "bridge start timed out after 10s"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    fmt.Sprintf("%s timed out after %v", operation, duration),
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s timed out after %v: %v", e.Operation, e.Duration, e.cause)
	}
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification
// -----------------------------------------------------------------------------

// IsCancellation reports whether err is a cancellation signal rather than a
// failure. Cancellation is swallowed at the bridge boundary.
//
// Deadline expiry is not cancellation: a timed-out operation failed.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, context.Canceled) || Is(err, ErrCanceled)
}

// IsMisuse reports whether err describes a lifecycle misuse.
func IsMisuse(err error) bool {
	var lerr *LifecycleError
	return As(err, &lerr)
}

// IsRetryable returns true if the error is transient and the operation may
// succeed on retry. The bridge itself never retries; this is for callers.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsRetryable()
	}

	if Is(err, ErrTimeout) || Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BridgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "dial endpoint")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "dial endpoint %s", url)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
