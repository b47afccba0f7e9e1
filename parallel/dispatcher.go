// Package parallel provides bulk, concurrent image recompression over a
// fixed pool of workers that steal from a shared queue.
package parallel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harriteja/squeezejpg/compress"
)

// DefaultNumWorkers is the default number of worker goroutines
const DefaultNumWorkers = 4

var (
	// ErrInvalidWorkers indicates a worker count below one
	ErrInvalidWorkers = errors.New("worker count must be at least 1")
	// ErrNilCodec indicates a configuration without a codec
	ErrNilCodec = errors.New("codec is required")
)

// Config holds the values a Dispatcher is built from
type Config struct {
	// Workers is the number of worker goroutines per run
	Workers int

	// Quality is the target JPEG quality, clamped to 1..100
	Quality int

	// Ordered makes results come out in submission order
	Ordered bool

	// Codec performs the per-item compression
	Codec compress.Codec

	// Logger receives debug output; nil discards it
	Logger *slog.Logger

	// Metrics receives scheduler events; nil disables them
	Metrics Metrics
}

// DefaultConfig returns a configuration with 4 workers, quality 95 and the JPEG codec
func DefaultConfig() Config {
	return Config{
		Workers: DefaultNumWorkers,
		Quality: compress.DefaultQuality,
		Codec:   compress.NewJPEG(),
	}
}

// Dispatcher runs batches of payloads through a worker pool.
// A Dispatcher is immutable and may start several runs concurrently.
type Dispatcher struct {
	numWorkers int
	quality    int
	ordered    bool
	codec      compress.Codec
	log        *slog.Logger
	metrics    Metrics
}

// NewDispatcher validates cfg and creates a dispatcher
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkers, cfg.Workers)
	}
	if cfg.Codec == nil {
		return nil, ErrNilCodec
	}

	d := &Dispatcher{
		numWorkers: cfg.Workers,
		quality:    compress.ClampQuality(cfg.Quality),
		ordered:    cfg.Ordered,
		codec:      cfg.Codec,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}

	if d.log == nil {
		d.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.metrics == nil {
		d.metrics = nopMetrics{}
	}

	return d, nil
}

// Run compresses payloads and returns their results as they become available.
//
// Every payload is queued before any worker starts. Results arrive in
// completion order, or in submission order when the dispatcher is ordered.
// Run does not block; the workers finish the batch even if the caller stops
// reading.
func (d *Dispatcher) Run(payloads [][]byte) *Results {
	start := time.Now()
	runID := uuid.NewString()
	log := d.log.With("run_id", runID)

	queue := NewQueue(len(payloads))
	for i, p := range payloads {
		if err := queue.Push(WorkItem{Index: i, Payload: p}); err != nil {
			panic(err) // unreachable: the queue is sealed below
		}
	}
	queue.Seal()

	stealers := NewStealerSet(d.numWorkers)
	for id := 0; id < d.numWorkers; id++ {
		if err := stealers.Register(queue.Stealer()); err != nil {
			panic(err) // unreachable: the set is sized to numWorkers
		}
	}

	var seq *Sequencer
	if d.ordered {
		seq = NewSequencer()
	}

	out := make(chan Result, len(payloads))
	done := newCompletion(len(payloads))
	results := &Results{
		ch:       out,
		total:    len(payloads),
		runID:    runID,
		finished: make(chan struct{}),
	}

	d.metrics.RunStarted(len(payloads), d.numWorkers)
	log.Debug("run started",
		"items", len(payloads),
		"workers", d.numWorkers,
		"quality", d.quality,
		"ordered", d.ordered)

	var wg sync.WaitGroup
	wg.Add(d.numWorkers)
	for id := 0; id < d.numWorkers; id++ {
		w := &worker{
			id:       id,
			stealers: stealers,
			queue:    queue,
			codec:    d.codec,
			quality:  d.quality,
			seq:      seq,
			done:     done,
			out:      out,
			log:      log,
			metrics:  d.metrics,
		}
		go func() {
			defer wg.Done()
			w.run()
			d.metrics.WorkerExited()
		}()
	}

	go func() {
		wg.Wait()
		close(out)

		elapsed := time.Since(start)
		d.metrics.RunFinished(elapsed)

		if err := done.verify(); err != nil {
			log.Error("run lost or duplicated items", "error", err)
			panic(err)
		}

		log.Debug("run finished", "items", len(payloads), "elapsed", elapsed)
		close(results.finished)
	}()

	return results
}

// NumWorkers returns the number of worker goroutines per run
func (d *Dispatcher) NumWorkers() int {
	return d.numWorkers
}

// Quality returns the clamped target quality
func (d *Dispatcher) Quality() int {
	return d.quality
}

// Ordered reports whether results are emitted in submission order
func (d *Dispatcher) Ordered() bool {
	return d.ordered
}
