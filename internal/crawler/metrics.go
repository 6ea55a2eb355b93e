package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects crawl counters on a private registry, so side by
// side schedulers in tests never trip duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched  *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	Records       prometheus.Counter
	Retries       prometheus.Counter
	FetchSeconds  prometheus.Histogram
}

// NewMetrics creates and registers the crawl metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabricworker",
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully, labeled by crawl phase.",
		}, []string{"phase"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabricworker",
			Name:      "url_failures_total",
			Help:      "URLs given up on, labeled by error kind.",
		}, []string{"kind"}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fabricworker",
			Name:      "records_extracted_total",
			Help:      "Raw product records persisted.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fabricworker",
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts beyond the first per URL.",
		}),
		FetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fabricworker",
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of successful fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.PagesFetched, m.FetchFailures, m.Records, m.Retries, m.FetchSeconds)
	return m
}

// Registry exposes the backing registry for a metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
