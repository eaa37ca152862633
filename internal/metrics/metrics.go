// Package metrics exposes Prometheus collectors for cache, probe, scrape and resolve
// activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kspb"

// Metrics groups the service collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	cacheErrors    *prometheus.CounterVec
	probeOutcomes  *prometheus.CounterVec
	scrapeOutcomes *prometheus.CounterVec
	resolveSeconds prometheus.Histogram
	trailLength    prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache kind and result.",
		}, []string{"cache", "result"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Cache backend failures treated as misses.",
		}, []string{"cache", "op"}),
		probeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "results_total",
			Help:      "Live probe results by status class.",
		}, []string{"class"}),
		scrapeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "results_total",
			Help:      "Live title scrapes by outcome.",
		}, []string{"outcome"}),
		resolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Wall-clock time of one resolution pass.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}),
		trailLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "trail_items",
			Help:      "Number of items in resolved trails.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
	reg.MustRegister(
		m.cacheLookups,
		m.cacheErrors,
		m.probeOutcomes,
		m.scrapeOutcomes,
		m.resolveSeconds,
		m.trailLength,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) CacheError(cache, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(cache, op).Inc()
}

// ProbeResult records a live probe by status class: 2xx, 3xx, 4xx, 5xx or "failed"
// for status 0.
func (m *Metrics) ProbeResult(status int) {
	if m == nil {
		return
	}
	m.probeOutcomes.WithLabelValues(StatusClass(status)).Inc()
}

func (m *Metrics) ScrapeResult(found bool) {
	if m == nil {
		return
	}
	outcome := "empty"
	if found {
		outcome = "title"
	}
	m.scrapeOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveResolve(d time.Duration, items int) {
	if m == nil {
		return
	}
	m.resolveSeconds.Observe(d.Seconds())
	m.trailLength.Observe(float64(items))
}

// StatusClass buckets an HTTP status into its class label.
func StatusClass(status int) string {
	if status <= 0 {
		return "failed"
	}
	return strconv.Itoa(status/100) + "xx"
}
