// Package metrics provides Prometheus metrics for pulsewatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pulsewatch"
)

// Monitoring cycle metrics
var (
	// MonitorCyclesTotal counts monitoring cycles by outcome.
	MonitorCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Total number of delivery monitoring cycles by outcome",
		},
		[]string{"outcome"},
	)

	// AlertsCreatedTotal counts persisted alerts by kind and severity.
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "alerts_created_total",
			Help:      "Total number of delivery alerts created",
		},
		[]string{"kind", "severity"},
	)

	// AlertsSuppressedTotal counts candidates dropped as duplicates.
	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of candidate alerts suppressed by the cooldown window",
		},
	)

	// CycleDuration tracks batch run latency per job.
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Batch cycle duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"job"},
	)
)

// Escalation metrics
var (
	// EscalationsTotal counts completed escalation transitions by severity.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "escalations_total",
			Help:      "Total number of alert escalation transitions",
		},
		[]string{"severity"},
	)

	// EscalationRunsTotal counts escalation runs by outcome.
	EscalationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "runs_total",
			Help:      "Total number of escalation scheduler runs by outcome",
		},
		[]string{"outcome"},
	)
)

// Notification metrics
var (
	// NotifyFailuresTotal counts notification dispatch failures by stage.
	NotifyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total number of notification dispatch failures",
		},
		[]string{"stage"},
	)

	// NotifySentTotal counts successful notification dispatches by stage.
	NotifySentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of successful notification dispatches",
		},
		[]string{"stage"},
	)
)

// Cycle outcomes.
const (
	OutcomeOK               = "ok"
	OutcomeInsufficientData = "insufficient_data"
	OutcomeError            = "error"
)

// Notification stages.
const (
	StageCreate   = "create"
	StageEscalate = "escalate"
)
