package utils

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	Uploads       *prometheus.CounterVec
	UploadBytes   prometheus.Counter
	Commits       *prometheus.CounterVec
	SweptFiles    prometheus.Counter
	Notifications *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the collectors registered with the global registry, created once.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers a fresh set of collectors. Tests pass their own registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status class.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cohort",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "attachments",
			Name:      "uploads_total",
			Help:      "Uploaded files by kind and outcome.",
		}, []string{"kind", "result"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "attachments",
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative payload size successfully written to storage.",
		}),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "attachments",
			Name:      "commits_total",
			Help:      "Attachment commits by outcome.",
		}, []string{"result"}),
		SweptFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "attachments",
			Name:      "orphans_swept_total",
			Help:      "Unlinked uploads removed by the orphan sweeper.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notifications by outcome.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.Uploads, m.UploadBytes, m.Commits, m.SweptFiles, m.Notifications)
	return m
}
