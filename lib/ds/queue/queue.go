package queue

import (
	"github.com/pkg/errors"
)

var ErrQueueEmpty = errors.New("queue is empty")

type Queue[T any] interface {
	Enqueue(v T)
	Dequeue() (T, error)
	Peek() (T, error)
	Len() uint
}

// NaiveQueue is a slice backed FIFO queue.
type NaiveQueue[T any] struct {
	queue []T
}

func NewNaive[T any](initialCap uint) *NaiveQueue[T] {
	return &NaiveQueue[T]{queue: make([]T, 0, initialCap)}
}

var _ Queue[int] = (*NaiveQueue[int])(nil)

func (q *NaiveQueue[T]) Enqueue(v T) {
	q.queue = append(q.queue, v)
}

func (q *NaiveQueue[T]) Dequeue() (T, error) {
	var zero T
	if q.Len() == 0 {
		return zero, ErrQueueEmpty
	}

	v := q.queue[0]
	q.queue[0] = zero
	q.queue = q.queue[1:]

	return v, nil
}

func (q *NaiveQueue[T]) Peek() (T, error) {
	if q.Len() == 0 {
		var zero T
		return zero, ErrQueueEmpty
	}
	return q.queue[0], nil
}

func (q *NaiveQueue[T]) Len() uint {
	return uint(len(q.queue))
}

// Filter drops every element that keep reports false for.
// Dropped elements are passed to onDrop when it is not nil.
func (q *NaiveQueue[T]) Filter(keep func(v T) bool, onDrop func(v T)) {
	kept := q.queue[:0]
	for _, v := range q.queue {
		if keep(v) {
			kept = append(kept, v)
			continue
		}
		if onDrop != nil {
			onDrop(v)
		}
	}

	var zero T
	for idx := len(kept); idx < len(q.queue); idx++ {
		q.queue[idx] = zero
	}
	q.queue = kept
}
