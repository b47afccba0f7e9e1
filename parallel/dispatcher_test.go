package parallel

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harriteja/squeezejpg/compress"
)

// generateJPEG creates a small valid JPEG with some content
func generateJPEG(t testing.TB, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 3), B: uint8(x ^ y), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}

// indexPayloads returns n payloads whose first byte is their index
func indexPayloads(n int) [][]byte {
	payloads := make([][]byte, n)
	for i := range payloads {
		payloads[i] = []byte{byte(i), 0xAB}
	}
	return payloads
}

// echoCodec returns the payload after a delay chosen per item
func echoCodec(delay func(idx int) time.Duration) compress.Codec {
	return compress.CodecFunc(func(payload []byte, _ int) ([]byte, error) {
		time.Sleep(delay(int(payload[0])))
		return append([]byte(nil), payload...), nil
	})
}

func newTestDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(cfg)
	require.NoError(t, err)
	return d
}

// TestDispatcherConstruction tests configuration validation
func TestDispatcherConstruction(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		d := newTestDispatcher(t, DefaultConfig())
		assert.Equal(t, DefaultNumWorkers, d.NumWorkers())
		assert.Equal(t, compress.DefaultQuality, d.Quality())
		assert.False(t, d.Ordered())
	})

	t.Run("invalid workers", func(t *testing.T) {
		for _, workers := range []int{0, -1} {
			cfg := DefaultConfig()
			cfg.Workers = workers
			_, err := NewDispatcher(cfg)
			assert.ErrorIs(t, err, ErrInvalidWorkers, "workers=%d", workers)
		}
	})

	t.Run("nil codec", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Codec = nil
		_, err := NewDispatcher(cfg)
		assert.ErrorIs(t, err, ErrNilCodec)
	})

	t.Run("quality is clamped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Quality = 250
		assert.Equal(t, compress.MaxQuality, newTestDispatcher(t, cfg).Quality())

		cfg.Quality = -4
		assert.Equal(t, compress.MinQuality, newTestDispatcher(t, cfg).Quality())
	})
}

func TestRunInvalidPayloads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	d := newTestDispatcher(t, cfg)

	payloads := make([][]byte, 20)
	for i := range payloads {
		payloads[i] = make([]byte, 512)
	}

	results := d.Run(payloads).Collect()
	require.Len(t, results, 20)
	for _, res := range results {
		assert.False(t, res.OK())
		assert.ErrorIs(t, res.Err, compress.ErrDecode)
		assert.Nil(t, res.Data)
	}
}

func TestRunValidPayloads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.Quality = 80
	d := newTestDispatcher(t, cfg)

	src := generateJPEG(t, 8)
	payloads := make([][]byte, 20)
	for i := range payloads {
		payloads[i] = src
	}

	results := d.Run(payloads).Collect()
	require.Len(t, results, 20)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.NotEmpty(t, res.Data)
	}
}

func TestRunOrderedReversedCompletion(t *testing.T) {
	const n = 5
	d := newTestDispatcher(t, Config{
		Workers: n,
		Quality: 80,
		Ordered: true,
		Codec: echoCodec(func(idx int) time.Duration {
			return time.Duration(n-idx) * 15 * time.Millisecond
		}),
	})

	var got []int
	results := d.Run(indexPayloads(n))
	for res := range results.All() {
		require.NoError(t, res.Err)
		got = append(got, int(res.Data[0]))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestRunUnorderedReversedCompletion(t *testing.T) {
	const n = 5
	d := newTestDispatcher(t, Config{
		Workers: n,
		Codec: echoCodec(func(idx int) time.Duration {
			return time.Duration(n-idx) * 15 * time.Millisecond
		}),
	})

	results := d.Run(indexPayloads(n)).Collect()
	require.Len(t, results, n)

	// The slowest item is submitted first, so it cannot come out first
	assert.NotEqual(t, 0, results[0].Index)
	for _, res := range results {
		assert.Equal(t, res.Index, int(res.Data[0]), "Index must match the payload")
	}
}

// TestRunProperties checks count and ordering for many batch/worker shapes
// with random per-item delays
func TestRunProperties(t *testing.T) {
	sizes := []int{1, 2, 7, 33, 100}
	workers := []int{1, 2, 3, 4, 8}

	for _, n := range sizes {
		for _, w := range workers {
			for _, ordered := range []bool{false, true} {
				name := fmt.Sprintf("n=%d/w=%d/ordered=%v", n, w, ordered)
				t.Run(name, func(t *testing.T) {
					delays := make([]time.Duration, n)
					for i := range delays {
						delays[i] = time.Duration(rand.Intn(500)) * time.Microsecond
					}

					d := newTestDispatcher(t, Config{
						Workers: w,
						Ordered: ordered,
						Codec:   echoCodec(func(idx int) time.Duration { return delays[idx] }),
					})

					results := d.Run(indexPayloads(n))
					got := results.Collect()
					results.Wait()

					require.Len(t, got, n)

					indices := make([]int, 0, n)
					for i, res := range got {
						require.NoError(t, res.Err)
						if ordered {
							require.Equal(t, i, res.Index)
							require.Equal(t, byte(i), res.Data[0])
						}
						indices = append(indices, res.Index)
					}

					sort.Ints(indices)
					for i, idx := range indices {
						require.Equal(t, i, idx, "lost or duplicated item")
					}
				})
			}
		}
	}
}

// TestRunOutcomesIndependentOfWorkers checks that the success/failure multiset
// does not depend on the worker count
func TestRunOutcomesIndependentOfWorkers(t *testing.T) {
	valid := generateJPEG(t, 8)
	payloads := make([][]byte, 12)
	for i := range payloads {
		if i%3 == 0 {
			payloads[i] = []byte("not an image")
		} else {
			payloads[i] = valid
		}
	}

	outcomes := func(workers int) map[int]bool {
		cfg := DefaultConfig()
		cfg.Workers = workers
		out := make(map[int]bool)
		for res := range newTestDispatcher(t, cfg).Run(payloads).All() {
			out[res.Index] = res.OK()
		}
		return out
	}

	want := outcomes(1)
	require.Len(t, want, len(payloads))
	for _, w := range []int{2, 4, 8} {
		assert.Equal(t, want, outcomes(w), "workers=%d", w)
	}
}

func TestRunSingleWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.Ordered = true
	d := newTestDispatcher(t, cfg)

	valid := generateJPEG(t, 4)
	results := d.Run([][]byte{valid, {0, 0, 0}, valid}).Collect()

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, results[2].OK())
}

func TestRunEmptyBatch(t *testing.T) {
	d := newTestDispatcher(t, DefaultConfig())

	results := d.Run(nil)
	_, ok := results.Next()
	assert.False(t, ok)
	assert.Equal(t, 0, results.Total())
	results.Wait()
}

func TestRunCodecPanic(t *testing.T) {
	d := newTestDispatcher(t, Config{
		Workers: 2,
		Ordered: true,
		Codec: compress.CodecFunc(func(payload []byte, _ int) ([]byte, error) {
			if payload[0] == 1 {
				panic("boom")
			}
			return payload, nil
		}),
	})

	results := d.Run(indexPayloads(3)).Collect()
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrCodecPanic)
	assert.NoError(t, results[2].Err)
}

func TestRunErrorCarriesIndex(t *testing.T) {
	errBad := errors.New("bad payload")
	d := newTestDispatcher(t, Config{
		Workers: 3,
		Codec: compress.CodecFunc(func([]byte, int) ([]byte, error) {
			return nil, errBad
		}),
	})

	for res := range d.Run(indexPayloads(4)).All() {
		assert.ErrorIs(t, res.Err, errBad)
		assert.Contains(t, res.Err.Error(), fmt.Sprintf("item %d", res.Index))
	}
}

func TestRunWithoutDraining(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, Config{
		Workers: 4,
		Ordered: true,
		Codec: compress.CodecFunc(func(payload []byte, _ int) ([]byte, error) {
			calls.Add(1)
			return payload, nil
		}),
	})

	results := d.Run(indexPayloads(40))

	done := make(chan struct{})
	go func() {
		results.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not finish without a reader")
	}
	assert.Equal(t, int32(40), calls.Load())
	assert.Len(t, results.Collect(), 40)
}

func TestRunPassesQuality(t *testing.T) {
	var got atomic.Int32
	d := newTestDispatcher(t, Config{
		Workers: 1,
		Quality: 130,
		Codec: compress.CodecFunc(func(payload []byte, quality int) ([]byte, error) {
			got.Store(int32(quality))
			return payload, nil
		}),
	})

	d.Run(indexPayloads(1)).Collect()
	assert.Equal(t, int32(100), got.Load())
}

func TestRunAllStopsEarly(t *testing.T) {
	d := newTestDispatcher(t, Config{Workers: 2, Codec: echoCodec(func(int) time.Duration { return 0 })})

	results := d.Run(indexPayloads(10))
	count := 0
	for range results.All() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)

	rest := results.Collect()
	assert.Len(t, rest, 7, "a broken iteration leaves the remaining results")
}

type recordingMetrics struct {
	mu        sync.Mutex
	started   int
	finished  int
	items     int
	failures  int
	waits     int
	exits     int
	runItems  int
	runWorker int
}

func (m *recordingMetrics) RunStarted(items, workers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	m.runItems, m.runWorker = items, workers
}

func (m *recordingMetrics) RunFinished(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished++
}

func (m *recordingMetrics) ObserveItem(_ time.Duration, _, _ int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items++
	if err != nil {
		m.failures++
	}
}

func (m *recordingMetrics) ObserveOrderWait(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits++
}

func (m *recordingMetrics) WorkerExited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exits++
}

func TestRunReportsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	d := newTestDispatcher(t, Config{
		Workers: 3,
		Ordered: true,
		Metrics: m,
		Codec: compress.CodecFunc(func(payload []byte, _ int) ([]byte, error) {
			if payload[0]%2 == 1 {
				return nil, errors.New("odd")
			}
			return payload, nil
		}),
	})

	results := d.Run(indexPayloads(6))
	results.Collect()
	results.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.started)
	assert.Equal(t, 1, m.finished)
	assert.Equal(t, 6, m.runItems)
	assert.Equal(t, 3, m.runWorker)
	assert.Equal(t, 6, m.items)
	assert.Equal(t, 3, m.failures)
	assert.Equal(t, 6, m.waits)
	assert.Equal(t, 3, m.exits)
}

func TestRunIDsAreUnique(t *testing.T) {
	d := newTestDispatcher(t, Config{Workers: 1, Codec: echoCodec(func(int) time.Duration { return 0 })})

	a := d.Run(nil)
	b := d.Run(nil)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestRunRecordsWorker(t *testing.T) {
	const workers = 3

	d := newTestDispatcher(t, Config{
		Workers: workers,
		Codec:   echoCodec(func(int) time.Duration { return time.Millisecond }),
	})

	used := make(map[int]int)
	for res := range d.Run(indexPayloads(30)).All() {
		require.NoError(t, res.Err)
		assert.GreaterOrEqual(t, res.Worker, 0)
		assert.Less(t, res.Worker, workers)
		used[res.Worker]++
	}
	assert.NotEmpty(t, used)

	single := newTestDispatcher(t, Config{Workers: 1, Codec: echoCodec(func(int) time.Duration { return 0 })})
	for res := range single.Run(indexPayloads(5)).All() {
		assert.Equal(t, 0, res.Worker)
	}
}
