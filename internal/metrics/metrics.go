// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Initiations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_initiations_total",
			Help: "STK push initiations by resulting receipt status",
		},
		[]string{"status"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stk_gateway_request_duration_seconds",
			Help:    "Latency of gateway calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"operation"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_receipt_transitions_total",
			Help: "Receipt status transitions",
		},
		[]string{"from", "to", "source"},
	)

	Webhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_webhooks_total",
			Help: "Webhook events by outcome",
		},
		[]string{"result"},
	)

	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stk_poll_ticks_total",
			Help: "Status poll ticks by outcome",
		},
		[]string{"result"},
	)

	ActivePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stk_active_pollers",
			Help: "Reconciliation pollers currently running",
		},
	)

	Releases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stk_loans_released_total",
			Help: "Receipts promoted to loan_released",
		},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stk_event_publish_errors_total",
			Help: "Receipt events that failed to publish",
		},
	)
)

// Outcome labels shared by webhooks and poll ticks.
const (
	ResultApplied    = "applied"
	ResultNoop       = "noop"
	ResultIgnored    = "ignored"
	ResultUnresolved = "unresolved"
	ResultInvalid    = "invalid"
	ResultError      = "error"
	ResultTransport  = "transport_error"
	ResultVanished   = "vanished"
)
