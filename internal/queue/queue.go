// Package queue holds work handed between goroutines until its consumer
// is ready for it.
package queue

import "sync"

// Queue is a FIFO safe for concurrent producers. The zero value is ready to
// use. A single consumer empties it with Drain.
type Queue[T any] struct {
	mu      sync.Mutex
	pending []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push adds items at the back.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.pending = append(q.pending, items...)
	q.mu.Unlock()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	n := len(q.pending)
	q.mu.Unlock()
	return n
}

// Drain takes everything queued so far and calls fn on each item, oldest
// first, without holding the lock. Items fn pushes wait for the next Drain.
// It returns how many items fn saw.
func (q *Queue[T]) Drain(fn func(T)) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, item := range batch {
		fn(item)
	}
	return len(batch)
}
