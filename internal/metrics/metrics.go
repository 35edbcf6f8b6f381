package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Updates           *prometheus.CounterVec
	Resolutions       *prometheus.CounterVec
	ResolveLatency    *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	OutgoingMessages  *prometheus.CounterVec
	Errors            *prometheus.CounterVec
	Users             prometheus.Gauge
	RequestsCompleted prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New builds the collectors and registers them with reg. When reg is nil a
// private registry is used.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound chat updates by pipeline outcome.",
		}, []string{"outcome"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Media resolutions by result kind.",
		}, []string{"kind"}),
		ResolveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Latency distribution for content API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_cache_lookups_total",
			Help:      "Media cache lookups by result.",
		}, []string{"result"}),
		OutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outgoing_messages_total",
			Help:      "Outbound Telegram sends by type and status.",
		}, []string{"type", "status"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors grouped by component.",
		}, []string{"component"}),
		Users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Registered users at the last stats report.",
		}),
		RequestsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_completed",
			Help:      "Sum of per-user request counters at the last stats report.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Updates,
		m.Resolutions,
		m.ResolveLatency,
		m.CacheLookups,
		m.OutgoingMessages,
		m.Errors,
		m.Users,
		m.RequestsCompleted,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveUpdate(outcome string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveResolve(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind).Inc()
	m.ResolveLatency.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSend(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OutgoingMessages.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveError(component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component).Inc()
}

func (m *Metrics) SetTotals(users, requests int64) {
	if m == nil {
		return
	}
	m.Users.Set(float64(users))
	m.RequestsCompleted.Set(float64(requests))
}
