package parallel

import "iter"

// Result is the outcome of compressing one submitted payload
type Result struct {
	// Index is the submission position of the payload
	Index int

	// Worker is the id of the worker that compressed the payload
	Worker int

	// Data is the compressed payload, nil on failure
	Data []byte

	// Err is the per-item failure, if any
	Err error
}

// OK reports whether compression succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Results is a finite, single-pass sequence of compression results.
// Workers run to completion whether or not the caller drains it.
type Results struct {
	ch       <-chan Result
	total    int
	runID    string
	finished chan struct{}
}

// Next blocks until a result is available. It returns false once every
// result has been delivered.
func (r *Results) Next() (Result, bool) {
	res, ok := <-r.ch
	return res, ok
}

// All returns an iterator over the remaining results
func (r *Results) All() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for res := range r.ch {
			if !yield(res) {
				return
			}
		}
	}
}

// Collect drains the remaining results into a slice
func (r *Results) Collect() []Result {
	out := make([]Result, 0, r.total)
	for res := range r.ch {
		out = append(out, res)
	}
	return out
}

// Wait blocks until every worker of the run has exited
func (r *Results) Wait() {
	<-r.finished
}

// Total returns the number of payloads submitted in the run
func (r *Results) Total() int {
	return r.total
}

// RunID returns the identifier attached to the run's log entries
func (r *Results) RunID() string {
	return r.runID
}
