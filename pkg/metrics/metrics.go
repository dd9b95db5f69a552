// Package metrics exposes Prometheus instrumentation for the chat client:
// turn outcomes, backend latency, reported agent steps, and knowledge-base
// operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deagent-io/deagent/pkg/step"
)

// Metrics holds the Prometheus collectors recorded by the turn pipeline and
// the backend client.
type Metrics struct {
	turnsTotal      *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	stepsTotal      *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	documentsTotal  prometheus.Counter
	historyLength   prometheus.Gauge
	inFlight        prometheus.Gauge
	rateLimitPauses prometheus.Counter
	responseSize    prometheus.Histogram
}

// NewMetrics creates and registers all collectors on the given registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deagent_turns_total",
			Help: "Total conversation turns by topic, intent, and outcome",
		}, []string{"topic", "intent", "status"}),

		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deagent_turn_duration_seconds",
			Help:    "End-to-end turn duration from dispatch to resolution",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"topic"}),

		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deagent_agent_steps_total",
			Help: "Total reported agent steps by agent name and final status",
		}, []string{"agent", "status"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deagent_backend_requests_total",
			Help: "Total backend requests by operation and outcome",
		}, []string{"operation", "status"}),

		documentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deagent_documents_uploaded_total",
			Help: "Total documents uploaded to the knowledge base",
		}),

		historyLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deagent_history_turns",
			Help: "Current number of turns in the conversation history",
		}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deagent_turns_in_flight",
			Help: "Number of turns currently awaiting a backend response (0 or 1)",
		}),

		rateLimitPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deagent_rate_limit_pauses_total",
			Help: "Total client-side pauses triggered by backend rate limiting",
		}),

		responseSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deagent_response_size_bytes",
			Help:    "Response content size distribution",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}

	registry.MustRegister(
		m.turnsTotal,
		m.turnDuration,
		m.stepsTotal,
		m.requestsTotal,
		m.documentsTotal,
		m.historyLength,
		m.inFlight,
		m.rateLimitPauses,
		m.responseSize,
	)

	return m
}

// RecordTurn records one resolved turn.
func (m *Metrics) RecordTurn(topic, intent string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	if intent == "" {
		intent = "unknown"
	}
	m.turnsTotal.WithLabelValues(topic, intent, status).Inc()
	m.turnDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordSteps records the final status of each reported agent step.
func (m *Metrics) RecordSteps(steps []step.Step) {
	for _, s := range steps {
		m.stepsTotal.WithLabelValues(s.Agent, string(s.Status)).Inc()
	}
}

// RecordRequest records one backend request outcome.
func (m *Metrics) RecordRequest(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDocumentUpload records one knowledge-base upload.
func (m *Metrics) RecordDocumentUpload() {
	m.documentsTotal.Inc()
}

// SetHistoryLength updates the conversation length gauge.
func (m *Metrics) SetHistoryLength(n int) {
	m.historyLength.Set(float64(n))
}

// SetInFlight updates the in-flight gauge.
func (m *Metrics) SetInFlight(active bool) {
	if active {
		m.inFlight.Set(1)
	} else {
		m.inFlight.Set(0)
	}
}

// RecordRateLimitPause records a pause triggered by a 429 response.
func (m *Metrics) RecordRateLimitPause() {
	m.rateLimitPauses.Inc()
}

// RecordResponseSize records the size of a successful response body.
func (m *Metrics) RecordResponseSize(bytes int) {
	m.responseSize.Observe(float64(bytes))
}
