package parallel

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/harriteja/squeezejpg/compress"
)

// ErrCodecPanic is reported for an item whose codec call panicked
var ErrCodecPanic = errors.New("codec panicked")

// worker polls the stealer set until the completion detector lets it go
type worker struct {
	id       int
	stealers *StealerSet
	queue    *Queue
	codec    compress.Codec
	quality  int
	seq      *Sequencer // nil in completion-order mode
	done     *completion
	out      chan<- Result
	log      *slog.Logger
	metrics  Metrics
}

func (w *worker) run() {
	vec := make([]bool, 0, w.stealers.Len())
	processed := 0

	for {
		var (
			item WorkItem
			ok   bool
		)
		item, ok, vec = w.stealers.StealOne(vec)

		if ok {
			w.done.claim()
			w.process(item)
			processed++
		}

		if w.done.done(w.queue, vec) {
			break
		}

		// Nothing to take this cycle: give the holder of the queue lock a chance
		if !ok {
			runtime.Gosched()
		}
	}

	w.log.Debug("worker exited", "worker", w.id, "processed", processed)
}

// process compresses one item and emits its result
func (w *worker) process(item WorkItem) {
	start := time.Now()
	data, err := w.compress(item.Payload)
	w.metrics.ObserveItem(time.Since(start), len(item.Payload), len(data), err)

	if err != nil {
		err = fmt.Errorf("item %d: %w", item.Index, err)
		data = nil
		w.log.Debug("compression failed", "worker", w.id, "index", item.Index, "error", err)
	}

	res := Result{Index: item.Index, Worker: w.id, Data: data, Err: err}

	if w.seq == nil {
		w.send(res)
		return
	}

	waitStart := time.Now()
	w.seq.Do(item.Index, func() {
		w.metrics.ObserveOrderWait(time.Since(waitStart))
		w.send(res)
	})
}

// compress calls the codec, turning a panic into a per-item error
func (w *worker) compress(payload []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrCodecPanic, r)
		}
	}()
	return w.codec.Compress(payload, w.quality)
}

// send never blocks: the result channel has room for the whole batch
func (w *worker) send(res Result) {
	w.out <- res
	w.done.emit()
}
