// Package metrics owns the prometheus registry for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lab_engine"

type Registry struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	resultsTotal    *prometheus.CounterVec
	trendsTotal     *prometheus.CounterVec
	skippedTotal    prometheus.Counter
}

// New builds a registry with the HTTP and engine collectors plus the Go
// runtime and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		resultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Classified lab results by status and severity",
			},
			[]string{"status", "severity"},
		),
		trendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trends_total",
				Help:      "Detected trends by direction",
			},
			[]string{"direction"},
		),
		skippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_records_total",
				Help:      "Lab orders skipped because their payload could not be read",
			},
		),
	}

	r.reg.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.resultsTotal,
		r.trendsTotal,
		r.skippedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the registry for tests and push gateways.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) ObserveRequest(method, path, status string, seconds float64) {
	r.requestsTotal.WithLabelValues(method, path, status).Inc()
	r.requestDuration.WithLabelValues(method, path).Observe(seconds)
}

func (r *Registry) RecordResult(status, severity string) {
	r.resultsTotal.WithLabelValues(status, severity).Inc()
}

func (r *Registry) RecordTrend(direction string) {
	r.trendsTotal.WithLabelValues(direction).Inc()
}

func (r *Registry) RecordSkipped(n int) {
	if n > 0 {
		r.skippedTotal.Add(float64(n))
	}
}
