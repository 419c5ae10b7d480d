// Package reorder restores frame order between a parallel worker pool and a
// sequential consumer.
//
// Buffer is an arena of slots addressed by index mod capacity. Producers Put
// results in any order as long as the index lies inside the current window
// [next, next+capacity); the single consumer calls Next to take them back out
// strictly in index order.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfWindow reports a Put whose index falls outside the active window.
	ErrOutOfWindow = errors.New("reorder: index outside window")
	// ErrDuplicate reports a second Put for an index still held by the buffer.
	ErrDuplicate = errors.New("reorder: duplicate index")
	// ErrClosed reports a Put at or beyond the announced end of the sequence.
	ErrClosed = errors.New("reorder: sequence closed")
)

type slot[T any] struct {
	index int64
	value T
	full  bool
}

// Buffer is safe for concurrent producers and one consumer.
type Buffer[T any] struct {
	mu     sync.Mutex
	slots  []slot[T]
	next   int64
	end    int64
	signal chan struct{}
}

// New returns a buffer holding at most capacity out-of-order items.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		slots:  make([]slot[T], capacity),
		end:    -1,
		signal: make(chan struct{}, 1),
	}
}

// Capacity reports the number of slots.
func (b *Buffer[T]) Capacity() int {
	return len(b.slots)
}

// Put stores value for index.
func (b *Buffer[T]) Put(index int64, value T) error {
	b.mu.Lock()
	if b.end >= 0 && index >= b.end {
		b.mu.Unlock()
		return fmt.Errorf("%w: index %d, end %d", ErrClosed, index, b.end)
	}
	capacity := int64(len(b.slots))
	if index < b.next || index >= b.next+capacity {
		next := b.next
		b.mu.Unlock()
		return fmt.Errorf("%w: index %d, window [%d,%d)", ErrOutOfWindow, index, next, next+capacity)
	}
	s := &b.slots[index%capacity]
	if s.full {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicate, index)
	}
	s.index = index
	s.value = value
	s.full = true
	b.mu.Unlock()
	b.notify()
	return nil
}

// Next blocks until the item with the next expected index is available and
// returns it. ok is false once every index below the CloseAt total has been
// delivered.
func (b *Buffer[T]) Next(ctx context.Context) (value T, ok bool, err error) {
	for {
		b.mu.Lock()
		s := &b.slots[b.next%int64(len(b.slots))]
		if s.full && s.index == b.next {
			value = s.value
			var zero T
			s.value = zero
			s.full = false
			b.next++
			b.mu.Unlock()
			return value, true, nil
		}
		if b.end >= 0 && b.next >= b.end {
			b.mu.Unlock()
			return value, false, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return value, false, ctx.Err()
		case <-b.signal:
		}
	}
}

// CloseAt announces that the sequence ends before index total.
func (b *Buffer[T]) CloseAt(total int64) {
	b.mu.Lock()
	if total < 0 {
		total = 0
	}
	b.end = total
	b.mu.Unlock()
	b.notify()
}

// Delivered reports how many items Next has returned.
func (b *Buffer[T]) Delivered() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// Pending reports how many items wait in the buffer.
func (b *Buffer[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, s := range b.slots {
		if s.full {
			count++
		}
	}
	return count
}

func (b *Buffer[T]) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}
