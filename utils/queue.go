package utils

import (
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("treesync: queue is closed")
var ErrQueueOverflow = errors.New("treesync: queue is overflowed")

// Queue is a bounded FIFO for fanning updates out to a client session.
// A slow consumer overflows it; the producer then drops the session
// rather than stall everyone else.
type Queue[T any] struct {
	lock   sync.Mutex
	items  []T
	limit  int
	closed bool
}

func NewQueue[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

func (q *Queue[T]) Push(item T) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.limit > 0 && len(q.items) >= q.limit {
		return ErrQueueOverflow
	}
	q.items = append(q.items, item)
	return nil
}

// Drain takes everything queued so far. Returns ErrQueueClosed once
// the queue is closed and empty.
func (q *Queue[T]) Drain() ([]T, error) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, nil
	}
	items := q.items
	q.items = nil
	return items, nil
}

func (q *Queue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

func (q *Queue[T]) Close() {
	q.lock.Lock()
	q.closed = true
	q.lock.Unlock()
}
