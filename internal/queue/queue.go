// Package queue implements the FIFO ready queue used by the round-robin engine.
package queue

import (
	"fmt"

	"github.com/me/rrsim/pkg/model"
)

// ReadyQueue is an ordered FIFO of processes awaiting dispatch. A process
// appears in the queue at most once.
type ReadyQueue struct {
	items  []*model.Process
	queued map[int]bool // keyed by Process.Index
}

// New creates an empty ReadyQueue.
func New() *ReadyQueue {
	return &ReadyQueue{queued: make(map[int]bool)}
}

// Enqueue appends p to the back of the queue.
func (q *ReadyQueue) Enqueue(p *model.Process) error {
	if p == nil {
		return fmt.Errorf("enqueue nil process: %w", model.ErrInvalidInput)
	}
	if q.queued[p.Index] {
		return fmt.Errorf("process %s already queued: %w", p.ID, model.ErrInvalidInput)
	}
	q.items = append(q.items, p)
	q.queued[p.Index] = true
	return nil
}

// Dequeue removes and returns the front process. Callers check IsEmpty first.
func (q *ReadyQueue) Dequeue() (*model.Process, error) {
	if len(q.items) == 0 {
		return nil, model.ErrEmptyQueue
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	delete(q.queued, p.Index)
	return p, nil
}

// IsEmpty reports whether no process is waiting.
func (q *ReadyQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Len returns the number of queued processes.
func (q *ReadyQueue) Len() int {
	return len(q.items)
}

// Contains reports whether the process with the given index is queued.
func (q *ReadyQueue) Contains(index int) bool {
	return q.queued[index]
}

// IDs returns the queued process labels, front to back.
func (q *ReadyQueue) IDs() []string {
	ids := make([]string, len(q.items))
	for i, p := range q.items {
		ids[i] = p.ID
	}
	return ids
}
