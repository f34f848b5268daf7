// Package ledger keeps the append-only analyst comment lists and the
// bounded per-install audit trail.
package ledger

// Deque is a fixed-capacity ring buffer that only grows at the front.
// When full, pushing evicts the element at the back (the oldest).
// Not safe for concurrent use; owners guard it.
type Deque[T any] struct {
	buf  []T
	head int // index of the newest element
	size int
}

// NewDeque creates a deque holding at most capacity elements.
// capacity < 1 is raised to 1.
func NewDeque[T any](capacity int) *Deque[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Deque[T]{buf: make([]T, capacity)}
}

// PushFront inserts v as the newest element and reports whether an old
// element was evicted.
func (d *Deque[T]) PushFront(v T) (evicted bool) {
	n := len(d.buf)
	d.head = (d.head - 1 + n) % n
	d.buf[d.head] = v
	if d.size == n {
		return true
	}
	d.size++
	return false
}

// Front returns the newest element
func (d *Deque[T]) Front() (T, bool) {
	var zero T
	if d.size == 0 {
		return zero, false
	}
	return d.buf[d.head], true
}

// Items returns a copy of the contents, newest first
func (d *Deque[T]) Items() []T {
	out := make([]T, d.size)
	for i := 0; i < d.size; i++ {
		out[i] = d.buf[(d.head+i)%len(d.buf)]
	}
	return out
}

// Len returns the number of stored elements
func (d *Deque[T]) Len() int { return d.size }

// Cap returns the capacity
func (d *Deque[T]) Cap() int { return len(d.buf) }

// Reset drops every element
func (d *Deque[T]) Reset() {
	var zero T
	for i := range d.buf {
		d.buf[i] = zero
	}
	d.head, d.size = 0, 0
}
