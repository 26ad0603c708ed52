package orderedbuffer

import (
	"errors"
	"sort"
)

var ErrClosedBuffer = errors.New("buffer is closed")

type CompareFunc[T any] func(a, b T) int

// OrderedBoundedBuffer keeps up to capacity values sorted by compare.
// Inserting past capacity evicts the smallest value. It is not safe for
// concurrent use.
type OrderedBoundedBuffer[T any] struct {
	data     []T
	capacity int
	compare  CompareFunc[T]

	closed bool
}

func NewOrderedBoundedBuffer[T any](capacity int, cmp CompareFunc[T]) *OrderedBoundedBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &OrderedBoundedBuffer[T]{
		data:     make([]T, 0, capacity+1),
		capacity: capacity,
		compare:  cmp,
	}
}

// Insert places val in order. When the buffer overflows, the smallest value is
// removed and returned with evicted set to true. Equal values keep insertion order.
func (b *OrderedBoundedBuffer[T]) Insert(val T) (out T, evicted bool, err error) {
	if b.closed {
		return out, false, ErrClosedBuffer
	}

	idx := sort.Search(len(b.data), func(i int) bool {
		return b.compare(val, b.data[i]) < 0
	})

	b.data = append(b.data, val)
	copy(b.data[idx+1:], b.data[idx:])
	b.data[idx] = val

	if len(b.data) > b.capacity {
		out = b.data[0]
		b.data = b.data[1:]
		return out, true, nil
	}

	return out, false, nil
}

func (b *OrderedBoundedBuffer[T]) Len() int {
	return len(b.data)
}

// Close stops accepting values and returns what is left, in order.
func (b *OrderedBoundedBuffer[T]) Close() []T {
	if b.closed {
		return nil
	}
	b.closed = true

	rest := b.data
	b.data = nil
	return rest
}
