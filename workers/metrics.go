package workers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts runs per service, labelled with the agent's host. A nil
// *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(host string) *Metrics {
	labels := prometheus.Labels{"host": host}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "speedflux_runs_total",
			Help:        "Total number of measurement runs",
			ConstLabels: labels,
		}, []string{"service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "speedflux_run_failures_total",
			Help:        "Total number of failed measurement runs",
			ConstLabels: labels,
		}, []string{"service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "speedflux_run_duration_seconds",
			Help:        "Duration of measurement runs in seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"service"}),
	}
	m.registry.MustRegister(m.runs, m.failures, m.duration)
	return m
}

func (m *Metrics) observe(service string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(service).Inc()
	if err != nil {
		m.failures.WithLabelValues(service).Inc()
	}
	m.duration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics on addr.
func (m *Metrics) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
