package session

import "errors"

var (
	// ErrMalformedBatch is returned when the parallel slices of a method
	// batch disagree in length. Nothing is mutated when it is returned.
	ErrMalformedBatch = errors.New("malformed instrumented method batch")

	// ErrIndexOutOfRange is returned by in-place cell updates addressing a
	// slot that has not been registered.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCapacityExceeded is returned when a registration would need more
	// slots than a column can hold.
	ErrCapacityExceeded = errors.New("column capacity exceeded")

	// ErrShrink is returned when an authoritative class total is smaller
	// than the number of classes already tracked.
	ErrShrink = errors.New("class total smaller than tracked classes")
)
