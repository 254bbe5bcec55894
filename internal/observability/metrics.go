package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hairhub"

// Metrics holds the service collectors on a private registry. It satisfies
// formula.Recorder.
type Metrics struct {
	registry     *prometheus.Registry
	attempts     *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	guards       *prometheus.CounterVec
	collaborator *prometheus.HistogramVec
	requests     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Collaborator calls made by the formula pipeline.",
		}, []string{"attempt"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_outcomes_total",
			Help:      "Formula generations by terminal outcome.",
		}, []string{"outcome"}),
		guards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_overrides_total",
			Help:      "Suitability guards that rewrote a candidate.",
		}, []string{"guard"}),
		collaborator: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Latency of vision collaborator calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.attempts, m.outcomes, m.guards, m.collaborator, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Attempt counts by attempt index; brand is left out to keep label cardinality fixed.
func (m *Metrics) Attempt(_ string, attempt int) {
	m.attempts.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func (m *Metrics) Outcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GuardOverride(guard string) {
	m.guards.WithLabelValues(guard).Inc()
}

func (m *Metrics) ObserveCollaborator(provider string, d time.Duration) {
	m.collaborator.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
