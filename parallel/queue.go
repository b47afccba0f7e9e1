package parallel

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueSealed is returned when pushing to a queue after Seal
var ErrQueueSealed = errors.New("queue is sealed")

// WorkItem is a raw image payload and its position in the submitted batch
type WorkItem struct {
	// Index is the zero-based submission position
	Index int
	// Payload is owned by the queue until stolen, then by the stealing worker
	Payload []byte
}

// StealStatus reports the outcome of a single steal attempt
type StealStatus int

const (
	// StealSuccess means an item was removed from the front of the queue
	StealSuccess StealStatus = iota
	// StealEmpty means the queue held no items at the time of the attempt
	StealEmpty
	// StealRetry means the queue was busy; it must not be treated as empty
	StealRetry
)

// String implements fmt.Stringer
func (s StealStatus) String() string {
	switch s {
	case StealSuccess:
		return "success"
	case StealEmpty:
		return "empty"
	case StealRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Queue is a FIFO filled by a single producer and drained through Stealers.
// The producer pushes every item once and then seals the queue.
type Queue struct {
	mu     sync.Mutex
	items  []WorkItem
	head   int
	sealed atomic.Bool
}

// NewQueue creates an empty queue with room for capacity items
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{items: make([]WorkItem, 0, capacity)}
}

// Push appends an item at the back of the queue
func (q *Queue) Push(item WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.sealed.Load() {
		return ErrQueueSealed
	}
	q.items = append(q.items, item)
	return nil
}

// Seal marks the end of production. Once sealed and empty, the queue stays empty.
func (q *Queue) Seal() {
	q.mu.Lock()
	q.sealed.Store(true)
	q.mu.Unlock()
}

// Sealed reports whether the producer has finished
func (q *Queue) Sealed() bool {
	return q.sealed.Load()
}

// Len returns the number of items not yet stolen
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head
}

// Stealer issues a read handle on the queue
func (q *Queue) Stealer() *Stealer {
	return &Stealer{q: q}
}

// steal removes the front item without waiting for the lock
func (q *Queue) steal() (WorkItem, StealStatus) {
	if !q.mu.TryLock() {
		return WorkItem{}, StealRetry
	}
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return WorkItem{}, StealEmpty
	}

	item := q.items[q.head]
	// Drop the queue's reference so the payload can be collected after use
	q.items[q.head] = WorkItem{}
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}

	return item, StealSuccess
}

// Stealer is a handle that lets a worker remove items from a Queue it does not own
type Stealer struct {
	q *Queue
}

// Steal attempts to remove one item from the front of the queue
func (s *Stealer) Steal() (WorkItem, StealStatus) {
	return s.q.steal()
}

// IsEmpty reports whether the underlying queue currently holds no items
func (s *Stealer) IsEmpty() bool {
	return s.q.Len() == 0
}
