// Package metrics exposes Prometheus counters for scrape runs. The listener
// is optional; when disabled the counters are still collected but never
// served.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RunsTotal        prometheus.Counter
	PagesScraped     prometheus.Counter
	PayloadsRejected prometheus.Counter
	DownloadsTotal   *prometheus.CounterVec
	ScrollIterations prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a metrics set on a private registry so tests can create as
// many instances as they need without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegrab_runs_total",
			Help: "The total number of scrape runs started",
		}),
		PagesScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegrab_pages_scraped_total",
			Help: "The total number of pages scraped",
		}),
		PayloadsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagegrab_payloads_rejected_total",
			Help: "The total number of malformed payloads rejected",
		}),
		DownloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagegrab_downloads_total",
			Help: "The total number of downloads by outcome",
		}, []string{"status"}), // 'success' or 'failure'
		ScrollIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagegrab_scroll_iterations",
			Help:    "Scroll cycles needed before page height stabilized",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		}),
	}

	registry.MustRegister(m.RunsTotal, m.PagesScraped, m.PayloadsRejected,
		m.DownloadsTotal, m.ScrollIterations)

	return m
}

// IncDownload records one download outcome.
func (m *Metrics) IncDownload(success bool) {
	if success {
		m.DownloadsTotal.WithLabelValues("success").Inc()
	} else {
		m.DownloadsTotal.WithLabelValues("failure").Inc()
	}
}

// Handler returns an HTTP handler serving this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a blocking metrics listener on addr.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
