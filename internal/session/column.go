package session

import (
	"fmt"
	"math"
)

const (
	// SeedCapacity is the capacity a column gets on its first growth.
	SeedCapacity = 50

	maxCapacity = math.MaxInt32
)

// column is an amortized-doubling array. Its capacity is len(buf); the logical
// length is tracked by the inventory so that parallel columns share it.
//
// buf is only ever replaced wholesale when growing, never resliced in place,
// so slices handed out earlier keep their length and backing array.
type column[T any] struct {
	buf []T
}

type resizer interface {
	capacity() int
	resize(newCap, keep int)
}

func (c *column[T]) capacity() int {
	return len(c.buf)
}

func (c *column[T]) resize(newCap, keep int) {
	next := make([]T, newCap)
	copy(next, c.buf[:keep])
	c.buf = next
}

// view returns the first n cells with the capacity clipped, so appends by the
// caller can never write into the column.
func (c *column[T]) view(n int) []T {
	if n == 0 {
		return c.buf[:0:0]
	}
	return c.buf[:n:n]
}

func (c *column[T]) clear() {
	c.buf = nil
}

// nextCapacity returns the capacity a column of capacity cur grows to when it
// must hold required cells.
func nextCapacity(cur, required int) int {
	next := cur
	if next == 0 {
		next = SeedCapacity
	}
	for next < required {
		if next > maxCapacity/2 {
			return maxCapacity
		}
		next *= 2
	}
	return next
}

// growTogether makes every column hold at least required cells. If any of them
// is too small, all are reallocated to the same new capacity, preserving the
// first keep cells. Callers hold a mutating transaction.
func growTogether(required, keep int, cols ...resizer) error {
	if required > maxCapacity || required < 0 {
		return fmt.Errorf("%w: %d slots requested", ErrCapacityExceeded, required)
	}

	largest, short := 0, false
	for _, c := range cols {
		largest = max(largest, c.capacity())
		if c.capacity() < required {
			short = true
		}
	}
	if !short {
		return nil
	}

	newCap := largest
	if newCap < required {
		newCap = nextCapacity(largest, required)
	}
	for _, c := range cols {
		c.resize(newCap, keep)
	}
	return nil
}
