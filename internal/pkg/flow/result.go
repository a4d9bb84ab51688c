// Package flow holds the small set of channel primitives the status engine is
// built from: a value-or-error result, combine-latest and map.
package flow

// Result is a value or an error delivered over a channel.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Get returns the value and the error, in the usual Go order.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}
