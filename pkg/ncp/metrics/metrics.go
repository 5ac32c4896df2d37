// Package metrics wires the reference node's counters into a dedicated
// prometheus.Registry, following the teacher's per-concern Collector
// style (compare internal/agent/instrumentation/metrics.RPCCollector),
// simplified to plain CounterVec/Gauge fields since none of these need a
// dynamically discovered metric set.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge the reference node publishes for
// sessions, notification fan-out and access-token validation outcomes.
type Metrics struct {
	Registry *prometheus.Registry

	SessionsOpened    prometheus.Counter
	SessionsClosed    prometheus.Counter
	SessionsActive    prometheus.Gauge
	CommandsProcessed *prometheus.CounterVec // labeled by method name

	NotificationsSent    prometheus.Counter
	NotificationsDropped prometheus.Counter // dropped by a full subscriber queue

	ValidatorOutcomes *prometheus.CounterVec // labeled by outcome: ok, insufficient_scope, no_matching_keys, not_ready
}

// New constructs a Metrics bound to a fresh registry; register it with an
// HTTP handler (promhttp.HandlerFor) wherever the embedder exposes one.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ncp_sessions_opened_total",
			Help: "Total number of control-protocol sessions opened.",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ncp_sessions_closed_total",
			Help: "Total number of control-protocol sessions closed.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ncp_sessions_active",
			Help: "Number of control-protocol sessions currently open.",
		}),
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ncp_commands_processed_total",
			Help: "Total number of Device Model commands processed, by method name.",
		}, []string{"method"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ncp_notifications_sent_total",
			Help: "Total number of property-changed notifications delivered to subscribers.",
		}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ncp_notifications_dropped_total",
			Help: "Total number of notifications dropped because a subscriber's queue was full.",
		}),
		ValidatorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ncp_validator_outcomes_total",
			Help: "Total number of access-token validation outcomes, by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.SessionsOpened,
		m.SessionsClosed,
		m.SessionsActive,
		m.CommandsProcessed,
		m.NotificationsSent,
		m.NotificationsDropped,
		m.ValidatorOutcomes,
	)

	return m
}

// Outcome labels for ValidatorOutcomes, matching the ncperrors sentinels
// the validator pipeline can return.
const (
	OutcomeOK                = "ok"
	OutcomeInsufficientScope = "insufficient_scope"
	OutcomeNoMatchingKeys    = "no_matching_keys"
	OutcomeNotReady          = "not_ready"
)

// RecordValidatorOutcome increments the outcome counter for the given
// outcome label (one of the Outcome* constants).
func (m *Metrics) RecordValidatorOutcome(outcome string) {
	m.ValidatorOutcomes.WithLabelValues(outcome).Inc()
}
