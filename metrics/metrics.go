// Package metrics exposes scheduler events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/harriteja/squeezejpg/parallel"
)

const namespace = "squeezejpg"

var _ parallel.Metrics = (*Collector)(nil)

// Collector implements parallel.Metrics
type Collector struct {
	// Run metrics
	RunsStarted    prometheus.Counter
	RunDuration    prometheus.Histogram
	ActiveRuns     prometheus.Gauge
	ItemsQueued    prometheus.Counter
	WorkersStarted prometheus.Counter
	WorkerExits    prometheus.Counter

	// Item metrics
	ItemsProcessed *prometheus.CounterVec // labels: outcome
	ItemDuration   prometheus.Histogram
	BytesIn        prometheus.Counter
	BytesOut       prometheus.Counter

	// Ordering metrics
	OrderWait prometheus.Histogram
}

// New registers the collector's metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of compression runs started",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from run start until every worker exited",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of runs with workers still polling",
		}),
		ItemsQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_queued_total",
			Help:      "Total number of payloads pushed to the task queue",
		}),
		WorkersStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_started_total",
			Help:      "Total number of worker goroutines started",
		}),
		WorkerExits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_exited_total",
			Help:      "Total number of worker goroutines that exited",
		}),
		ItemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Total number of payloads compressed, by outcome",
		}, []string{"outcome"}),
		ItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent in the codec per payload",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		BytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_bytes_total",
			Help:      "Total size of payloads handed to the codec",
		}),
		BytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Total size of compressed payloads",
		}),
		OrderWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_wait_seconds",
			Help:      "Time a finished item waited for its turn in ordered mode",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

// RunStarted implements parallel.Metrics
func (c *Collector) RunStarted(items, workers int) {
	c.RunsStarted.Inc()
	c.ActiveRuns.Inc()
	c.ItemsQueued.Add(float64(items))
	c.WorkersStarted.Add(float64(workers))
}

// RunFinished implements parallel.Metrics
func (c *Collector) RunFinished(d time.Duration) {
	c.ActiveRuns.Dec()
	c.RunDuration.Observe(d.Seconds())
}

// ObserveItem implements parallel.Metrics
func (c *Collector) ObserveItem(d time.Duration, inBytes, outBytes int, err error) {
	c.ItemDuration.Observe(d.Seconds())
	c.BytesIn.Add(float64(inBytes))

	if err != nil {
		c.ItemsProcessed.WithLabelValues("failure").Inc()
		return
	}
	c.ItemsProcessed.WithLabelValues("success").Inc()
	c.BytesOut.Add(float64(outBytes))
}

// ObserveOrderWait implements parallel.Metrics
func (c *Collector) ObserveOrderWait(d time.Duration) {
	c.OrderWait.Observe(d.Seconds())
}

// WorkerExited implements parallel.Metrics
func (c *Collector) WorkerExited() {
	c.WorkerExits.Inc()
}
