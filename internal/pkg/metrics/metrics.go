// Package metrics declares the prometheus collectors of the status engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "currency_status"

var (
	// SupplierProducers counts running shared producers per supplier.
	SupplierProducers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "supplier",
		Name:      "active_producers",
		Help:      "Number of shared producers currently running.",
	}, []string{"supplier"})

	// SupplierSubscribers counts attached subscribers per supplier.
	SupplierSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "supplier",
		Name:      "subscribers",
		Help:      "Number of subscribers attached to shared producers.",
	}, []string{"supplier"})

	// MergeFailures counts currency statuses that could not be merged, by reason.
	MergeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "operator",
		Name:      "merge_failures_total",
		Help:      "Currency status merges that returned an error.",
	}, []string{"reason"})

	// SourceFetchDuration observes fetch latency of the source repositories.
	SourceFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of source repository fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source", "outcome"})

	// HTTPRequestDuration observes REST request latency by route and status code.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry. Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SupplierProducers, SupplierSubscribers, MergeFailures, SourceFetchDuration, HTTPRequestDuration)
	})
}
