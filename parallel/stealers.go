package parallel

import (
	"errors"
	"sync"
)

// ErrStealerSetFull is returned when registering more stealers than the set was sized for
var ErrStealerSetFull = errors.New("stealer set is full")

// StealerSet is the shared collection of stealers, one per worker.
// Membership is fixed once registration completes; afterwards the mutex only
// serializes steal attempts.
type StealerSet struct {
	mu       sync.Mutex
	stealers []*Stealer
	size     int
}

// NewStealerSet creates a set that accepts exactly size stealers
func NewStealerSet(size int) *StealerSet {
	if size < 0 {
		size = 0
	}
	return &StealerSet{
		stealers: make([]*Stealer, 0, size),
		size:     size,
	}
}

// Register adds a stealer to the set
func (s *StealerSet) Register(st *Stealer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stealers) >= s.size {
		return ErrStealerSetFull
	}
	s.stealers = append(s.stealers, st)
	return nil
}

// Len returns the number of registered stealers
func (s *StealerSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.stealers)
}

// StealOne tries each stealer in turn and takes at most one item.
//
// The returned completion vector has one entry per stealer, true when that
// stealer was observed empty during this attempt. A contended stealer counts
// as not empty. vec is reused as backing storage when it has enough capacity.
func (s *StealerSet) StealOne(vec []bool) (WorkItem, bool, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec = vec[:0]

	var item WorkItem
	found := false
	for _, st := range s.stealers {
		if found {
			vec = append(vec, st.IsEmpty())
			continue
		}

		got, status := st.Steal()
		switch status {
		case StealSuccess:
			item, found = got, true
			vec = append(vec, st.IsEmpty())
		case StealEmpty:
			vec = append(vec, true)
		default:
			vec = append(vec, false)
		}
	}

	return item, found, vec
}
