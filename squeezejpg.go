// Package squeezejpg recompresses JPEG images, one at a time or in bulk
// across a pool of workers.
package squeezejpg

import (
	"github.com/harriteja/squeezejpg/compress"
	"github.com/harriteja/squeezejpg/parallel"
)

// Version is the library version
const Version = "0.1.0"

// Result is the outcome of compressing one payload of a batch
type Result = parallel.Result

// Results is the pull-based sequence returned by batch compression
type Results = parallel.Results

// Compress recompresses a single image at the given quality (clamped to 1..100)
func Compress(payload []byte, quality int) ([]byte, error) {
	return compress.Single(payload, quality)
}

// CompressBatch recompresses payloads using workers goroutines.
// Results are yielded in completion order; Result.Index identifies the input.
func CompressBatch(payloads [][]byte, workers, quality int) (*Results, error) {
	return runBatch(payloads, workers, quality, false)
}

// CompressBatchOrdered is like CompressBatch but yields results in the
// order the payloads were given.
func CompressBatchOrdered(payloads [][]byte, workers, quality int) (*Results, error) {
	return runBatch(payloads, workers, quality, true)
}

func runBatch(payloads [][]byte, workers, quality int, ordered bool) (*Results, error) {
	cfg := parallel.DefaultConfig()
	cfg.Workers = workers
	cfg.Quality = quality
	cfg.Ordered = ordered

	d, err := parallel.NewDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	return d.Run(payloads), nil
}
