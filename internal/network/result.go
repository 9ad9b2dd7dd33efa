package network

import "github.com/basecamp/netkit/internal/neterr"

// Result is either a value or a classified error, never both.
type Result[T any] struct {
	value T
	err   *neterr.Error
}

// Success wraps v.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure wraps err. Errors that are not *neterr.Error are reported as
// UnKnownError, as is a nil err.
func Failure[T any](err error) Result[T] {
	if err == nil {
		return Result[T]{err: neterr.New(neterr.UnKnownError)}
	}
	return Result[T]{err: neterr.As(err, neterr.UnKnownError)}
}

func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// Value returns the value, or the zero value on failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil on success.
func (r Result[T]) Err() *neterr.Error {
	return r.err
}

// Get unpacks the result into the usual (value, error) pair.
func (r Result[T]) Get() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}
