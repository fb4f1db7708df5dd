package models

import "time"

// AlertKind identifies the anomaly a delivery alert was raised for.
type AlertKind string

const (
	KindLowDeliveryRate AlertKind = "low_delivery_rate"
	KindHighFailureRate AlertKind = "high_failure_rate"
	KindErrorPattern    AlertKind = "error_pattern"
	KindSuddenDrop      AlertKind = "sudden_drop"
)

// Severity represents alert severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// EscalationRecord is one entry of an alert's append-only escalation history.
type EscalationRecord struct {
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
	Notified  int       `json:"notified"`
	Channels  []string  `json:"channels"`
}

// Alert is a persisted delivery anomaly, tracked through notification,
// escalation, and resolution. Alerts are never deleted, only resolved.
type Alert struct {
	ID             string         `json:"id"`
	Kind           AlertKind      `json:"kind"`
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	MetricValue    float64        `json:"metric_value"`
	ThresholdValue float64        `json:"threshold_value"`
	PeriodStart    time.Time      `json:"period_start"`
	PeriodEnd      time.Time      `json:"period_end"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// NotifySent records the best-effort admin notification for a freshly
	// created alert; it is advisory and never gates escalation.
	NotifySent   bool       `json:"notify_sent"`
	NotifySentAt *time.Time `json:"notify_sent_at,omitempty"`

	EscalationLevel   int                `json:"escalation_level"`
	EscalatedAt       *time.Time         `json:"escalated_at,omitempty"`
	EscalatedTo       []string           `json:"escalated_to,omitempty"`
	EscalationHistory []EscalationRecord `json:"escalation_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LastTransitionAt returns the timestamp escalation age is measured from:
// the last escalation if one happened, otherwise creation.
func (a *Alert) LastTransitionAt() time.Time {
	if a.EscalatedAt != nil {
		return *a.EscalatedAt
	}
	return a.CreatedAt
}

// Priority maps severity to dispatch priority: critical and high alerts go
// out as high priority, everything else as medium.
func (a *Alert) Priority() string {
	switch a.Severity {
	case SeverityCritical, SeverityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParseAlertKind converts a string to AlertKind. Unknown values map to
// error_pattern, the most generic kind.
func ParseAlertKind(s string) AlertKind {
	switch s {
	case "low_delivery_rate":
		return KindLowDeliveryRate
	case "high_failure_rate":
		return KindHighFailureRate
	case "sudden_drop":
		return KindSuddenDrop
	default:
		return KindErrorPattern
	}
}

// ValidAlertKind reports whether s names a known alert kind.
func ValidAlertKind(s string) bool {
	switch AlertKind(s) {
	case KindLowDeliveryRate, KindHighFailureRate, KindErrorPattern, KindSuddenDrop:
		return true
	}
	return false
}

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return SeverityLow
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// ValidSeverity reports whether s names a known severity.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
