// Package metrics exposes Prometheus collectors for the email miner.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsTotal           *prometheus.CounterVec
	pagesFetchedTotal    *prometheus.CounterVec
	activeLanes          prometheus.Gauge
	batchDurationSeconds prometheus.Histogram
	itemsResetTotal      prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times. Observations made before
// Init are dropped.
func Init() {
	once.Do(func() {
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contactminer_items_total",
				Help: "Total number of items mined, labeled by outcome status.",
			},
			[]string{"status"},
		)

		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contactminer_pages_fetched_total",
				Help: "Total number of page navigations, labeled by result.",
			},
			[]string{"result"},
		)

		activeLanes = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contactminer_active_lanes",
				Help: "Number of lanes currently processing items.",
			},
		)

		batchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contactminer_batch_duration_seconds",
				Help:    "Histogram of batch wall-clock durations.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
			},
		)

		itemsResetTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contactminer_items_reset_total",
				Help: "Total number of failed items reset for another round.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem increments the item counter for the given status.
func ObserveItem(status string) {
	if itemsTotal == nil {
		return
	}
	itemsTotal.WithLabelValues(status).Inc()
}

// ObservePageFetch increments the page navigation counter.
func ObservePageFetch(result string) {
	if pagesFetchedTotal == nil {
		return
	}
	pagesFetchedTotal.WithLabelValues(result).Inc()
}

// IncActiveLanes increments the active lanes gauge.
func IncActiveLanes() {
	if activeLanes == nil {
		return
	}
	activeLanes.Inc()
}

// DecActiveLanes decrements the active lanes gauge.
func DecActiveLanes() {
	if activeLanes == nil {
		return
	}
	activeLanes.Dec()
}

// ObserveBatchDuration records how long a batch took.
func ObserveBatchDuration(d time.Duration) {
	if batchDurationSeconds == nil {
		return
	}
	batchDurationSeconds.Observe(d.Seconds())
}

// ObserveItemsReset adds n to the reset counter.
func ObserveItemsReset(n int64) {
	if itemsResetTotal == nil || n <= 0 {
		return
	}
	itemsResetTotal.Add(float64(n))
}
