// Package series provides a fixed-capacity, insertion-ordered buffer for
// ticks, candles, or alerts. Appending beyond capacity evicts the oldest
// element (FIFO). Thread-safe for concurrent writes and reads.
package series

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBadCapacity is returned when a buffer is constructed with capacity <= 0.
var ErrBadCapacity = errors.New("series: capacity must be a positive integer")

// Buffer is a bounded circular buffer of T values.
type Buffer[T any] struct {
	mu   sync.RWMutex
	buf  []T
	cap  int
	pos  int // next write position
	full bool
}

// New creates a buffer with the given capacity.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrBadCapacity, capacity)
	}
	return &Buffer[T]{
		buf: make([]T, capacity),
		cap: capacity,
	}, nil
}

// Append adds v to the buffer, evicting the oldest element when full. O(1).
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf[b.pos] = v
	b.pos = (b.pos + 1) % b.cap
	if b.pos == 0 && !b.full {
		b.full = true
	}
}

// Len returns the number of elements currently in the buffer.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return b.cap
}

// LastN returns the most recent k elements in arrival order without
// mutating state. If fewer than k elements exist, all are returned.
func (b *Buffer[T]) LastN(k int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.len()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	out := make([]T, k)
	for i := 0; i < k; i++ {
		out[i] = b.buf[b.index(n-k+i)]
	}
	return out
}

// Items returns all elements in arrival order (oldest first).
func (b *Buffer[T]) Items() []T {
	return b.LastN(b.Len())
}

func (b *Buffer[T]) len() int {
	if b.full {
		return b.cap
	}
	return b.pos
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (b *Buffer[T]) index(logical int) int {
	if b.full {
		return (b.pos + logical) % b.cap
	}
	return logical
}
