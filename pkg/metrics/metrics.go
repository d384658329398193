// Package metrics exposes geovec's Prometheus metrics.
//
// Metrics are registered on the default registry through promauto and are
// safe for concurrent use:
//
//	metrics.VectorRowsWritten.WithLabelValues("roads").Inc()
//
//	timer := metrics.NewTimer()
//	err := platform.Apply(ctx, table, mutations)
//	metrics.ObserveStore("apply", platform.Name(), timer.Stop(), err)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VectorRowsWritten counts features written into columnar vectors.
	// Labels: type_name
	VectorRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_vector_rows_written_total",
			Help: "Features written into columnar vectors",
		},
		[]string{"type_name"},
	)

	// VectorReplays counts variable-width columns rewound for an out of
	// order write. Labels: type_name, field
	VectorReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_vector_replays_total",
			Help: "Variable-width column rewinds caused by out of order writes",
		},
		[]string{"type_name", "field"},
	)

	// VectorGrowths counts capacity doublings. Labels: type_name
	VectorGrowths = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_vector_growths_total",
			Help: "Columnar vector capacity doublings",
		},
		[]string{"type_name"},
	)

	// StoreMutations counts key-value mutations applied to a platform.
	// Labels: platform, kind (put/delete)
	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_store_mutations_total",
			Help: "Key-value mutations applied",
		},
		[]string{"platform", "kind"},
	)

	// StoreRowsScanned counts rows returned by platform scans.
	// Labels: platform
	StoreRowsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_store_rows_scanned_total",
			Help: "Rows returned by range scans",
		},
		[]string{"platform"},
	)

	// StoreLatency tracks platform operation latency in seconds.
	// Labels: operation (apply/scan), platform, status (success/failure)
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "geovec_store_latency_seconds",
			Help: "Key-value platform operation latency",
			Buckets: []float64{
				0.0001, // 100µs - in-process tables
				0.001,
				0.01, // 10ms - network round trip
				0.1,
				1,
				10,
			},
		},
		[]string{"operation", "platform", "status"},
	)

	// QueryFeatures counts features returned by datastore queries.
	// Labels: type_name
	QueryFeatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_query_features_total",
			Help: "Features returned by attribute queries",
		},
		[]string{"type_name"},
	)

	// IngestThroughput is the most recent ingest rate in features per second.
	// Labels: type_name
	IngestThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geovec_ingest_features_per_second",
			Help: "Current ingest throughput in features per second",
		},
		[]string{"type_name"},
	)

	// IngestFeatures counts features handled by ingest pipelines.
	// Labels: type_name, status (written, filtered, failed)
	IngestFeatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geovec_ingest_features_total",
			Help: "Features handled by ingest pipelines",
		},
		[]string{"type_name", "status"},
	)
)

// ObserveStore records the latency and outcome of a platform operation.
func ObserveStore(operation, platform string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	StoreLatency.WithLabelValues(operation, platform, status).Observe(d.Seconds())
}

// Timer measures an operation duration from its creation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time. It can be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks ingest throughput over time windows. Safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	typeName  string
}

// NewThroughputTracker creates a tracker reporting under typeName.
func NewThroughputTracker(typeName string) *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now(), typeName: typeName}
}

// Increment adds n features to the current window.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset computes features per second since the last reset, publishes
// it to IngestThroughput and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	IngestThroughput.WithLabelValues(t.typeName).Set(throughput)
	return throughput
}
