package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles the collectors exported by the ingestion engine. Each Set owns
// a private registry so tests can scrape in isolation.
type Set struct {
	registry *prometheus.Registry

	CyclesTotal     *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	FeedStale       *prometheus.GaugeVec
	FeedFailures    *prometheus.GaugeVec
	LastUpdate      *prometheus.GaugeVec
	ActivePipelines prometheus.Gauge
}

// New builds and registers the collector set under the given namespace.
func New(namespace string) *Set {
	s := &Set{registry: prometheus.NewRegistry()}

	s.CyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_cycles_total",
		Help:      "Poll cycles by region, product and outcome.",
	}, []string{"region", "product", "result"})

	s.CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_cycle_duration_seconds",
		Help:      "Wall time of a full poll cycle: listing, download, decode, store.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"product"})

	s.FeedStale = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_stale",
		Help:      "1 when a feed is serving stale data, 0 otherwise.",
	}, []string{"region", "product"})

	s.FeedFailures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_consecutive_failures",
		Help:      "Consecutive failed poll cycles per feed.",
	}, []string{"region", "product"})

	s.LastUpdate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_last_update_timestamp_seconds",
		Help:      "Unix time of the last successful series update per feed.",
	}, []string{"region", "product"})

	s.ActivePipelines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_pipelines",
		Help:      "Number of regions currently being polled.",
	})

	s.registry.MustRegister(
		s.CyclesTotal,
		s.CycleDuration,
		s.FeedStale,
		s.FeedFailures,
		s.LastUpdate,
		s.ActivePipelines,
	)
	return s
}

// Handler exposes the set for scraping.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
