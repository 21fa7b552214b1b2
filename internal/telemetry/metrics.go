// Package telemetry exposes Prometheus metrics for the board server and its
// scheduled jobs.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loomboard"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	jobRuns     *prometheus.CounterVec
	jobAffected *prometheus.CounterVec
	jobLastRun  *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by API surface, method and status code.",
		}, []string{"surface", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by API surface.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"surface"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		jobAffected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "affected_total",
			Help:      "Rows deleted or tasks archived by scheduled jobs.",
		}, []string{"job"}),
		jobLastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run per job.",
		}, []string{"job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.jobRuns, m.jobAffected, m.jobLastRun,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(surface, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(surface, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(surface).Observe(elapsed.Seconds())
}

// JobFinished records a scheduled job run.
func (m *Metrics) JobFinished(job string, affected int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	if affected > 0 {
		m.jobAffected.WithLabelValues(job).Add(float64(affected))
	}
	m.jobLastRun.WithLabelValues(job).SetToCurrentTime()
}
