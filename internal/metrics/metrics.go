// Package metrics bundles the Prometheus collectors for gamecheck on a
// dedicated registry. Every method is safe to call on a nil *Metrics so
// components can run without instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeNoAck    = "no_ack"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Metrics holds all collectors.
type Metrics struct {
	Registry         *prometheus.Registry
	SubmissionsTotal *prometheus.CounterVec
	ReconnectsTotal  prometheus.Counter
	EventsTotal      *prometheus.CounterVec
	MergedItemsTotal *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec
	ConnState        *prometheus.GaugeVec
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	submissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecheck_submissions_total",
			Help: "Games handed to the dispatcher, by outcome.",
		},
		[]string{"outcome"},
	)
	reconnects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gamecheck_stream_reconnects_total",
			Help: "Reconnect attempts scheduled after a stream error.",
		},
	)
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecheck_stream_events_total",
			Help: "Push events received, by envelope type.",
		},
		[]string{"type"},
	)
	merged := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecheck_merged_items_total",
			Help: "Items processed by the merger, by result.",
		},
		[]string{"result"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gamecheck_api_request_duration_seconds",
			Help:    "Latency of one-shot backend API calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamecheck_errors_total",
			Help: "Errors by kind.",
		},
		[]string{"kind"},
	)
	connState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gamecheck_stream_state",
			Help: "1 for the current push channel state, 0 otherwise.",
		},
		[]string{"state"},
	)

	registry.MustRegister(submissions, reconnects, events, merged, duration, errorsTotal, connState)

	return &Metrics{
		Registry:         registry,
		SubmissionsTotal: submissions,
		ReconnectsTotal:  reconnects,
		EventsTotal:      events,
		MergedItemsTotal: merged,
		RequestDuration:  duration,
		ErrorsTotal:      errorsTotal,
		ConnState:        connState,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncSubmission counts a dispatcher outcome.
func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// IncReconnect counts a scheduled reconnect.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// IncEvent counts a received push event.
func (m *Metrics) IncEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// AddMerged adds n items to the merge counter for result.
func (m *Metrics) AddMerged(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MergedItemsTotal.WithLabelValues(result).Add(float64(n))
}

// ObserveRequest records the latency of an API call.
func (m *Metrics) ObserveRequest(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// IncError counts an error of the given kind.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// SetState marks state as current among all states.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnState.WithLabelValues(s).Set(v)
	}
}
