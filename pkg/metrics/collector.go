// Package metrics exposes Prometheus instrumentation for training runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot holds the most recent training statistics for status reporting.
type Snapshot struct {
	// Steps completed so far
	Steps int64 `json:"steps"`
	// Batches skipped because they could not mine triplets
	Skipped int64 `json:"skipped"`
	// Loss of the most recent step
	LastLoss float64 `json:"last_loss"`
	// Triplets mined in the most recent step
	LastTriplets int `json:"last_triplets"`
	// Time of the most recent step
	UpdatedAt time.Time `json:"updated_at"`
}

// Collector manages the collection of training metrics.
type Collector struct {
	registry *prometheus.Registry
	// Completed steps counter
	steps prometheus.Counter
	// Skipped batches counter
	skipped prometheus.Counter
	// Loss of the most recent step
	batchLoss prometheus.Gauge
	// Mined triplets by strategy
	triplets *prometheus.CounterVec
	// Step latency histogram
	stepLatency prometheus.Histogram

	// Lock for the snapshot
	mu   sync.Mutex
	last Snapshot
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siren_training_steps_total",
			Help: "Number of completed training steps",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siren_skipped_batches_total",
			Help: "Number of batches skipped for yielding no triplets",
		}),
		batchLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "siren_batch_loss",
			Help: "Triplet loss of the most recent batch",
		}),
		triplets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siren_triplets_total",
			Help: "Number of mined triplets",
		}, []string{"strategy"}),
		stepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "siren_step_duration_seconds",
			Help:    "Training step latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
	}

	c.registry.MustRegister(c.steps, c.skipped, c.batchLoss, c.triplets, c.stepLatency)
	return c
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveStep records the outcome of one completed training step.
func (c *Collector) ObserveStep(loss float64, triplets int, strategy string, elapsed time.Duration) {
	c.steps.Inc()
	c.batchLoss.Set(loss)
	c.triplets.WithLabelValues(strategy).Add(float64(triplets))
	c.stepLatency.Observe(elapsed.Seconds())

	c.mu.Lock()
	c.last.Steps++
	c.last.LastLoss = loss
	c.last.LastTriplets = triplets
	c.last.UpdatedAt = time.Now()
	c.mu.Unlock()
}

// BatchSkipped records a batch that produced no triplets.
func (c *Collector) BatchSkipped() {
	c.skipped.Inc()

	c.mu.Lock()
	c.last.Skipped++
	c.mu.Unlock()
}

// Snapshot returns the most recent training statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
