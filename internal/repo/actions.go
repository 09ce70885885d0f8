package repo

import (
	"fmt"
	"sync"

	"touchline/internal/domain"
)

// Actions is a strict FIFO of agent actions. A Limit of zero leaves it unbounded.
type Actions struct {
	Limit int

	mu    sync.Mutex
	items []domain.Action
	head  int
}

func NewActions(limit int) *Actions {
	return &Actions{Limit: limit}
}

func (q *Actions) Enqueue(a domain.Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Limit > 0 && len(q.items)-q.head >= q.Limit {
		return fmt.Errorf("action queue holds %d actions: %w", q.Limit, ErrConflict)
	}
	q.items = append(q.items, a)
	return nil
}

// Dequeue pops the oldest action. ok is false when the queue is empty.
func (q *Actions) Dequeue() (a domain.Action, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return domain.Action{}, false
	}
	a = q.items[q.head]
	q.items[q.head] = domain.Action{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 32 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return a, true
}

func (q *Actions) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
