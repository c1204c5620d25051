package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records sign-in and sign-up attempts by flow and result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkypartner_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"flow", "result"},
	)

	// MembershipTransitions counts membership workflow calls by transition and outcome code.
	MembershipTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkypartner_membership_transitions_total",
			Help: "Contract membership transitions by outcome",
		},
		[]string{"transition", "result"},
	)

	// InstancesGenerated counts obligation instance rows written.
	InstancesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkypartner_obligation_instances_generated_total",
			Help: "Obligation instances created by trigger",
		},
		[]string{"trigger"},
	)

	// NotificationsSent counts dispatch attempts by notification type and result.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkypartner_notifications_total",
			Help: "Notification dispatch attempts",
		},
		[]string{"type", "result"},
	)

	// SweepRuns records batch sweeps by job and result.
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkypartner_sweep_runs_total",
			Help: "Batch sweep executions",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinkypartner_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
