// Package metrics exposes Prometheus collectors for the crawl engine and the
// status server.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal                 *prometheus.CounterVec
	wordsTotal                 *prometheus.CounterVec
	fetchFailuresTotal         *prometheus.CounterVec
	frontierSeen               prometheus.Gauge
	frontierQueued             prometheus.Gauge
	frontierInFlight           prometheus.Gauge
	activeWorkers              prometheus.Gauge
	sessionsTotal              *prometheus.CounterVec
	rateLimitDelaySeconds      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once; every Observe helper calls it.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_pages_total",
			Help: "Pages recorded, by site.",
		}, []string{"site"})
		wordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_words_total",
			Help: "Words counted across recorded pages, by site.",
		}, []string{"site"})
		fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_fetch_failures_total",
			Help: "Dropped tasks, by failure kind.",
		}, []string{"kind"})
		frontierSeen = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sitecrawl_frontier_seen",
			Help: "Distinct URLs admitted to the frontier.",
		})
		frontierQueued = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sitecrawl_frontier_queued",
			Help: "Tasks waiting in the frontier queue.",
		})
		frontierInFlight = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sitecrawl_frontier_in_flight",
			Help: "Tasks currently held by workers.",
		})
		activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sitecrawl_active_workers",
			Help: "Worker loops currently running.",
		})
		sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_sessions_total",
			Help: "Finished sessions, by outcome.",
		}, []string{"outcome"})
		rateLimitDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecrawl_rate_limit_delay_seconds",
			Help:    "Time workers spent waiting on the request ceiling.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		})
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Status server requests, by method and code.",
		}, []string{"method", "code"})
		httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Status server latency, by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"})
	})
}

// SanitizeSite reduces a URL to its lowercase hostname, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage counts a recorded page and its words.
func ObservePage(pageURL string, words int) {
	Init()
	site := SanitizeSite(pageURL)
	pagesTotal.WithLabelValues(site).Inc()
	if words > 0 {
		wordsTotal.WithLabelValues(site).Add(float64(words))
	}
}

// ObserveFetchFailure counts a dropped task by kind.
func ObserveFetchFailure(kind string) {
	Init()
	fetchFailuresTotal.WithLabelValues(kind).Inc()
}

// SetFrontier publishes frontier bookkeeping.
func SetFrontier(seen, queued, inFlight int) {
	Init()
	frontierSeen.Set(float64(seen))
	frontierQueued.Set(float64(queued))
	frontierInFlight.Set(float64(inFlight))
}

// IncActiveWorkers increments the active worker gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active worker gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveSession counts a finished session by outcome.
func ObserveSession(outcome string) {
	Init()
	sessionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the request ceiling.
func ObserveRateLimitDelay(d time.Duration) {
	Init()
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records one status server request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
