package parallel

import (
	"fmt"
	"sync"
)

// Sequencer gates result emission so that results leave in submission order.
// A worker holding item k waits until the counter equals k, emits, and then
// advances the counter by exactly one.
type Sequencer struct {
	mu   sync.Mutex
	turn sync.Cond
	next int
}

// NewSequencer creates a sequencer whose first turn is index 0
func NewSequencer() *Sequencer {
	s := &Sequencer{}
	s.turn.L = &s.mu
	return s
}

// Next returns the index whose turn it currently is
func (s *Sequencer) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next
}

// Do blocks until it is index's turn, runs emit, and passes the turn on.
// emit must not block on other sequenced work.
func (s *Sequencer) Do(index int, emit func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.await(index)
	emit()
	s.next++
	s.turn.Broadcast()
}

// await must be called with mu held
func (s *Sequencer) await(index int) {
	if index < s.next {
		// Waiting would never return; the index was already emitted
		panic(fmt.Sprintf("parallel: sequence index %d already emitted (next %d)", index, s.next))
	}
	for s.next != index {
		s.turn.Wait()
	}
}
