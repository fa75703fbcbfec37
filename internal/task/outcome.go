package task

import "github.com/Iron-Ham/hostbridge/internal/errors"

// Outcome is the explicit success-or-failure result of an operation.
// The zero value is a failure carrying errors.ErrOperationFailed.
type Outcome[T any] struct {
	value T
	err   error
	ok    bool
}

// Success wraps a value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, ok: true}
}

// Failure wraps an error. A nil err is replaced by errors.ErrOperationFailed
// so that a failure can never be mistaken for a success.
func Failure[T any](err error) Outcome[T] {
	if err == nil {
		err = errors.ErrOperationFailed
	}
	return Outcome[T]{err: err}
}

// FromResult converts a (value, error) pair into an Outcome.
func FromResult[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// IsSuccess reports whether the outcome carries a value.
func (o Outcome[T]) IsSuccess() bool {
	return o.ok
}

// Value returns the success value, or the zero value for a failure.
func (o Outcome[T]) Value() T {
	return o.value
}

// Err returns the failure, or nil for a success.
func (o Outcome[T]) Err() error {
	if o.ok {
		return nil
	}
	if o.err == nil {
		return errors.ErrOperationFailed
	}
	return o.err
}

// Get returns the outcome as a (value, error) pair.
func (o Outcome[T]) Get() (T, error) {
	return o.value, o.Err()
}
