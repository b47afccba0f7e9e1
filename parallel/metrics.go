package parallel

import "time"

// Metrics receives scheduler events. Implementations must be safe for
// concurrent use; see package metrics for a Prometheus implementation.
type Metrics interface {
	RunStarted(items, workers int)
	RunFinished(d time.Duration)
	ObserveItem(d time.Duration, inBytes, outBytes int, err error)
	ObserveOrderWait(d time.Duration)
	WorkerExited()
}

type nopMetrics struct{}

func (nopMetrics) RunStarted(int, int) {}
func (nopMetrics) RunFinished(time.Duration) {}
func (nopMetrics) ObserveItem(time.Duration, int, int, error) {}
func (nopMetrics) ObserveOrderWait(time.Duration) {}
func (nopMetrics) WorkerExited() {}
