package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/sitecrawl/internal/progress"
)

// PrometheusSink turns progress events into session and per-site fetch
// collectors.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsRunning   prometheus.Gauge
	sessionRuntime    *prometheus.HistogramVec

	fetches       *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	mu      sync.Mutex
	running map[string]struct{}
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitecrawl_sessions_started_total",
			Help: "Crawl sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_sessions_completed_total",
			Help: "Crawl sessions finished, by result.",
		}, []string{"result"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitecrawl_sessions_running",
			Help: "Crawl sessions currently running.",
		}),
		sessionRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitecrawl_session_runtime_seconds",
			Help:    "Wall time per finished session.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_site_fetches_total",
			Help: "Successful fetches by site and status class.",
		}, []string{"site", "status_class"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_site_fetch_failures_total",
			Help: "Failed fetches by site and failure kind.",
		}, []string{"site", "kind"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecrawl_site_fetch_bytes_total",
			Help: "Body bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitecrawl_site_fetch_duration_seconds",
			Help:    "Fetch latency by site.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"site"}),
		running: make(map[string]struct{}),
	}
	for _, c := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsRunning,
		s.sessionRuntime,
		s.fetches,
		s.fetchFailures,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageSessionStart:
			s.sessionStarted(evt.SessionID)
		case progress.StageSessionDone:
			s.sessionFinished(evt, "done")
		case progress.StageSessionCanceled:
			s.sessionFinished(evt, "canceled")
		case progress.StageFetchDone:
			site := siteLabel(evt.Site)
			s.fetches.WithLabelValues(site, string(evt.StatusClass)).Inc()
			if evt.Bytes > 0 {
				s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
			}
			if evt.Dur > 0 {
				s.fetchDuration.WithLabelValues(site).Observe(evt.Dur.Seconds())
			}
		case progress.StageFetchFailed:
			s.fetchFailures.WithLabelValues(siteLabel(evt.Site), evt.Kind).Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) sessionStarted(id string) {
	s.sessionsStarted.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[id]; ok {
		return
	}
	s.running[id] = struct{}{}
	s.sessionsRunning.Inc()
}

func (s *PrometheusSink) sessionFinished(evt progress.Event, result string) {
	s.sessionsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.sessionRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.running[evt.SessionID]; !ok {
		return
	}
	delete(s.running, evt.SessionID)
	s.sessionsRunning.Dec()
}

func siteLabel(site string) string {
	if site == "" {
		return "unknown"
	}
	return site
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
