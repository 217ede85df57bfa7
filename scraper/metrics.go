package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors shared by fetchers, sources and the aggregator.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ItemsTotal      *prometheus.CounterVec
	ItemsSkipped    *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	SourceFailures  *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_requests_total",
			Help: "HTTP attempts issued per store.",
		},
		[]string{"store", "phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prices_request_duration_seconds",
			Help:    "HTTP attempt latency per store.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store"},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_listings_total",
			Help: "Listings extracted per store.",
		},
		[]string{"store"},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_listings_skipped_total",
			Help: "Malformed items dropped during extraction.",
		},
		[]string{"store"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_retries_total",
			Help: "Retry attempts scheduled per store.",
		},
		[]string{"store"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_errors_total",
			Help: "Failed attempts by store and error type.",
		},
		[]string{"store", "error_type"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_source_failures_total",
			Help: "Store queries that produced no usable result.",
		},
		[]string{"store"},
	)
	cache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prices_cache_lookups_total",
			Help: "Search cache lookups by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(requests, requestDuration, items, skipped, retries, errorsTotal, failures, cache)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      items,
		ItemsSkipped:    skipped,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		SourceFailures:  failures,
		CacheLookups:    cache,
	}
}

// IncRequest counts an attempt for store in the given phase.
func (m *Metrics) IncRequest(store, phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(store, phase).Inc()
}

// ObserveDuration records an attempt's duration.
func (m *Metrics) ObserveDuration(store string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(store).Observe(d.Seconds())
}

// AddItems adds n extracted listings.
func (m *Metrics) AddItems(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsTotal.WithLabelValues(store).Add(float64(n))
}

// IncSkipped counts one dropped item.
func (m *Metrics) IncSkipped(store string) {
	if m == nil {
		return
	}
	m.ItemsSkipped.WithLabelValues(store).Inc()
}

// IncRetries counts one scheduled retry.
func (m *Metrics) IncRetries(store string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(store).Inc()
}

// IncError counts one failed attempt.
func (m *Metrics) IncError(store, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(store, errorType).Inc()
}

// IncSourceFailure counts one failed store query.
func (m *Metrics) IncSourceFailure(store string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(store).Inc()
}

// IncCache counts a cache lookup; result is "hit" or "miss".
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
