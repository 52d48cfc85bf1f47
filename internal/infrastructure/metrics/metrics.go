// Package metrics exposes Prometheus instrumentation for the billing
// engine and the artifact cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the billing services report into.
type Metrics struct {
	registry *prometheus.Registry

	ClosingsTotal    prometheus.Counter
	ClosingFailures  prometheus.Counter
	InvoicesCreated  prometheus.Counter
	ClosingDuration  prometheus.Histogram
	ArtifactsBuilt   *prometheus.CounterVec
	ArtifactCacheHit *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ClosingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_closings_total",
			Help: "Number of successful billing period closings.",
		}),
		ClosingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_closing_failures_total",
			Help: "Number of billing closings that aborted.",
		}),
		InvoicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_invoices_created_total",
			Help: "Number of invoices created by closings.",
		}),
		ClosingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billing_closing_duration_seconds",
			Help:    "Duration of the billing closing transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		ArtifactsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_artifacts_generated_total",
			Help: "Number of export artifacts rendered and uploaded.",
		}, []string{"owner_type"}),
		ArtifactCacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_artifact_cache_hits_total",
			Help: "Number of artifact fetches served from the cache.",
		}, []string{"owner_type"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ClosingsTotal,
		m.ClosingFailures,
		m.InvoicesCreated,
		m.ClosingDuration,
		m.ArtifactsBuilt,
		m.ArtifactCacheHit,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
