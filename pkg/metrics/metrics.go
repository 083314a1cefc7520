package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store operation metrics, one counter per collection/operation pair
	// (block/event/operation stores each call these with their own
	// "store" label value).
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerstore_store_operations_total",
			Help: "Total number of store operations by store and operation",
		},
		[]string{"store", "operation"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerstore_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds by store and operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	// AddMany chunking metrics (spec.md §4.2's 0.95*16MiB/250-doc chunks).
	AddManyChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerstore_add_many_chunks_total",
			Help: "Total number of chunks an AddMany batch was split into",
		},
		[]string{"store"},
	)

	AddManyChunkSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerstore_add_many_chunk_size_documents",
			Help:    "Number of documents per AddMany chunk",
			Buckets: []float64{1, 10, 25, 50, 100, 150, 200, 250},
		},
		[]string{"store"},
	)

	// Duplicate-key rejections counted by OperationStore.AddMany per
	// chunk, whether ignoreDuplicate swallows them or not.
	DuplicateSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerstore_duplicate_skips_total",
			Help: "Total number of documents discarded from a batch due to a duplicate key",
		},
		[]string{"store"},
	)

	// LatestBlockHeight tracks the highest blockHeight committed per
	// ledger, keyed by ledgerNodeId since one process can host several
	// ledgers at once.
	LatestBlockHeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerstore_latest_block_height",
			Help: "Highest committed block height by ledger node",
		},
		[]string{"ledgerNodeId"},
	)
)

func init() {
	prometheus.MustRegister(StoreOperationsTotal)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(AddManyChunksTotal)
	prometheus.MustRegister(AddManyChunkSize)
	prometheus.MustRegister(DuplicateSkipsTotal)
	prometheus.MustRegister(LatestBlockHeight)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
