// Package monitor implements the delivery-monitoring cycle: sample delivery
// logs over a rolling window, classify anomalies against thresholds, persist
// deduplicated alerts, and fire best-effort admin notifications.
package monitor

import (
	"time"

	"github.com/voice2fire/pulsewatch/internal/models"
)

// DeliveryMetrics aggregates delivery log records over a time window.
// Derived, never persisted.
type DeliveryMetrics struct {
	TotalCount     int            `json:"total_count"`
	DeliveredCount int            `json:"delivered_count"`
	FailedCount    int            `json:"failed_count"`
	PendingCount   int            `json:"pending_count"`
	DeliveryRate   float64        `json:"delivery_rate"`
	FailureRate    float64        `json:"failure_rate"`
	ErrorCounts    map[string]int `json:"error_counts,omitempty"`
	PeriodStart    time.Time      `json:"period_start"`
	PeriodEnd      time.Time      `json:"period_end"`
}

// Aggregate computes delivery metrics for records in [start, end).
//
// Categorization: delivered means the carrier confirmed delivery; failed
// means the submission failed or the carrier reported failed/undelivered;
// pending means submitted but not yet in a terminal carrier state. Records
// whose status combination matches none of these stay uncategorized, so
// delivered + failed + pending may be less than total.
func Aggregate(records []*models.DeliveryLogRecord, start, end time.Time) *DeliveryMetrics {
	m := &DeliveryMetrics{
		TotalCount:  len(records),
		ErrorCounts: make(map[string]int),
		PeriodStart: start,
		PeriodEnd:   end,
	}

	for _, rec := range records {
		switch {
		case rec.DeliveryStatus == models.DeliveryStatusDelivered:
			m.DeliveredCount++
		case rec.Status == models.SendStatusFailed,
			rec.DeliveryStatus == models.DeliveryStatusFailed,
			rec.DeliveryStatus == models.DeliveryStatusUndelivered:
			m.FailedCount++
		case rec.Status == models.SendStatusSent && isPendingDeliveryStatus(rec.DeliveryStatus):
			m.PendingCount++
		}

		if key := rec.ErrorKey(); key != "" {
			m.ErrorCounts[key]++
		}
	}

	if m.TotalCount > 0 {
		m.DeliveryRate = float64(m.DeliveredCount) / float64(m.TotalCount) * 100
		m.FailureRate = float64(m.FailedCount) / float64(m.TotalCount) * 100
	}

	return m
}

func isPendingDeliveryStatus(s models.DeliveryStatus) bool {
	switch s {
	case "", models.DeliveryStatusQueued, models.DeliveryStatusSent, models.DeliveryStatusSending:
		return true
	}
	return false
}
