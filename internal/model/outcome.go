package model

// Outcome is the result of a call to an external collaborator: either a
// value, or the reason the collaborator could not provide one. Operational
// failures (missing credentials, network errors, timeouts) are carried as
// Unavailable outcomes instead of errors so callers must branch on them.
type Outcome[T any] struct {
	Value  T
	OK     bool
	Reason string
}

// Ok wraps a value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, OK: true}
}

// Unavailable reports why no value could be produced.
func Unavailable[T any](reason string) Outcome[T] {
	return Outcome[T]{Reason: reason}
}

// FromError turns a value/error pair into an Outcome.
func FromError[T any](v T, err error) Outcome[T] {
	if err != nil {
		return Unavailable[T](err.Error())
	}
	return Ok(v)
}
