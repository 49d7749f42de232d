// Package observability holds the Prometheus metrics for the knowledge
// engine. All Collector methods are nil-safe so components can run with
// metrics disabled.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the engine.
type Collector struct {
	registry *prometheus.Registry

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Sync metrics
	SyncAttempts   *prometheus.CounterVec
	ItemsAbandoned prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Conflict metrics
	ConflictsDetected prometheus.Counter
}

// NewCollector creates a metrics collector on a private registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	storeOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of entry store operations",
		},
		[]string{"operation", "status"},
	)

	storeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Entry store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	syncAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_attempts_total",
			Help:      "Total number of remote sync attempts",
		},
		[]string{"result"},
	)

	itemsAbandoned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_abandoned_total",
			Help:      "Queue items dropped after exhausting retries",
		},
	)

	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_depth",
			Help:      "Number of pending sync queue items",
		},
	)

	conflictsDetected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_detected_total",
			Help:      "Total number of local/remote conflicts detected",
		},
	)

	registry.MustRegister(storeOperations, storeDuration, syncAttempts,
		itemsAbandoned, queueDepth, conflictsDetected)

	return &Collector{
		registry:          registry,
		StoreOperations:   storeOperations,
		StoreDuration:     storeDuration,
		SyncAttempts:      syncAttempts,
		ItemsAbandoned:    itemsAbandoned,
		QueueDepth:        queueDepth,
		ConflictsDetected: conflictsDetected,
	}
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveStore records one entry store operation.
func (c *Collector) ObserveStore(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOperations.WithLabelValues(operation, status).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveSync records one remote sync attempt with its result label.
func (c *Collector) ObserveSync(result string) {
	if c == nil {
		return
	}
	c.SyncAttempts.WithLabelValues(result).Inc()
}

// SetQueueDepth records the current pending queue size.
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.QueueDepth.Set(float64(n))
}

// IncAbandoned records a queue item dropped after exhausting retries.
func (c *Collector) IncAbandoned() {
	if c == nil {
		return
	}
	c.ItemsAbandoned.Inc()
}

// IncConflicts records one detected conflict.
func (c *Collector) IncConflicts() {
	if c == nil {
		return
	}
	c.ConflictsDetected.Inc()
}
