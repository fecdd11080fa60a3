// Package metrics holds the Prometheus instruments for the voice bridge.
// All Record methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice bridge
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed *prometheus.CounterVec
	SessionDuration   prometheus.Histogram

	// Inbound media metrics
	FramesReceived    prometheus.Counter
	MalformedMessages *prometheus.CounterVec
	WorkUnitsFormed   prometheus.Counter

	// Turn metrics
	Turns          *prometheus.CounterVec
	TurnFailures   *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	ConversionTime *prometheus.HistogramVec

	// Outbound and liveness metrics
	OutboundMedia     prometheus.Counter
	KeepaliveTimeouts prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Current number of registered call sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_created_total",
			Help: "Total number of call sessions created",
		}),
		SessionsDestroyed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_sessions_destroyed_total",
			Help: "Total number of call sessions destroyed, by reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebridge_session_duration_seconds",
			Help:    "Lifetime of call sessions",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_frames_received_total",
			Help: "Total number of inbound media frames accepted",
		}),
		MalformedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_malformed_messages_total",
			Help: "Inbound messages dropped as malformed, by reason",
		}, []string{"reason"}),
		WorkUnitsFormed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_work_units_total",
			Help: "Total number of work units formed from buffered frames",
		}),

		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_turns_total",
			Help: "Completed turns by outcome",
		}, []string{"outcome"}),
		TurnFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_turn_failures_total",
			Help: "Failed turns by the step that failed",
		}, []string{"step"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebridge_turn_step_duration_seconds",
			Help:    "Time spent in each turn step",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		ConversionTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicebridge_conversion_duration_seconds",
			Help:    "Codec process run time by direction",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"direction"}),

		OutboundMedia: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_outbound_media_total",
			Help: "Total number of outbound media events written",
		}),
		KeepaliveTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_keepalive_timeouts_total",
			Help: "Sessions destroyed because a liveness probe went unanswered",
		}),
	}
}

// RecordSessionCreated increments the created counter and the active gauge
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionDestroyed decrements the active gauge and records lifetime
func (m *Metrics) RecordSessionDestroyed(reason string, lifetime time.Duration) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsDestroyed.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(lifetime.Seconds())
}

// RecordFrame increments the frames received counter
func (m *Metrics) RecordFrame() {
	if m == nil {
		return
	}
	m.FramesReceived.Inc()
}

// RecordMalformed increments the malformed message counter
func (m *Metrics) RecordMalformed(reason string) {
	if m == nil {
		return
	}
	m.MalformedMessages.WithLabelValues(reason).Inc()
}

// RecordWorkUnit increments the work unit counter
func (m *Metrics) RecordWorkUnit() {
	if m == nil {
		return
	}
	m.WorkUnitsFormed.Inc()
}

// RecordStep observes the time a turn spent in one step
func (m *Metrics) RecordStep(step string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

// RecordTurn counts a finished turn; failedStep is empty on success
func (m *Metrics) RecordTurn(outcome, failedStep string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	if failedStep != "" {
		m.TurnFailures.WithLabelValues(failedStep).Inc()
	}
}

// RecordConversion observes one codec process run
func (m *Metrics) RecordConversion(direction string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ConversionTime.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// RecordOutboundMedia increments the outbound media counter
func (m *Metrics) RecordOutboundMedia() {
	if m == nil {
		return
	}
	m.OutboundMedia.Inc()
}

// RecordKeepaliveTimeout increments the keepalive timeout counter
func (m *Metrics) RecordKeepaliveTimeout() {
	if m == nil {
		return
	}
	m.KeepaliveTimeouts.Inc()
}
