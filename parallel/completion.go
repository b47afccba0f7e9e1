package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrProtocol indicates items were lost or duplicated by the scheduler
var ErrProtocol = errors.New("work distribution protocol violated")

// completion decides when a worker may stop polling.
//
// The known batch size is authoritative: once every item has been claimed
// there is nothing left to steal. The completion vector is only trusted after
// the producer sealed the queue, because an empty unsealed queue may still grow.
type completion struct {
	total   int64
	claimed atomic.Int64
	emitted atomic.Int64
}

func newCompletion(total int) *completion {
	return &completion{total: int64(total)}
}

// claim records that a worker took ownership of an item
func (c *completion) claim() {
	c.claimed.Add(1)
}

// emit records that a result was handed to the caller
func (c *completion) emit() {
	c.emitted.Add(1)
}

// done reports whether the worker that observed vec may exit
func (c *completion) done(q *Queue, vec []bool) bool {
	if c.claimed.Load() >= c.total {
		return true
	}
	return q.Sealed() && allTrue(vec)
}

// verify checks that every item was claimed and emitted exactly once.
// Only meaningful after all workers exited.
func (c *completion) verify() error {
	claimed, emitted := c.claimed.Load(), c.emitted.Load()
	if claimed != c.total || emitted != c.total {
		return fmt.Errorf("%w: total %d, claimed %d, emitted %d", ErrProtocol, c.total, claimed, emitted)
	}
	return nil
}

func allTrue(vec []bool) bool {
	if len(vec) == 0 {
		return false
	}
	for _, v := range vec {
		if !v {
			return false
		}
	}
	return true
}
