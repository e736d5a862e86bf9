package retry

import "github.com/archivecrawl/crawler/pkg/failure"

// Result is the outcome of a Retry call: the value on success, the
// classified error on failure, and how many attempts it took either way.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult builds a Result recording a successful attempt.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

// Value returns the successful value. Its contents are meaningless when
// IsFailure is true.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the classified error, or nil on success.
func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

// IsFailure reports whether the retried call ultimately failed.
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

// Attempts returns how many attempts were made before returning.
func (r Result[T]) Attempts() int {
	return r.attempts
}
