package monitor

import (
	"fmt"
	"sort"

	"github.com/voice2fire/pulsewatch/internal/models"
)

// Candidate is an anomaly detected by the classifier, not yet checked
// against open alerts or persisted.
type Candidate struct {
	Kind           models.AlertKind
	Severity       models.Severity
	Title          string
	Description    string
	MetricValue    float64
	ThresholdValue float64
	Metadata       map[string]any
}

// Classify compares the current window's metrics (and, when available, the
// previous window's) against thresholds and returns zero or more candidates.
// Rules are independent: several may fire in the same cycle, and one
// error_pattern candidate is emitted per qualifying error string.
//
// Classify is pure; callers are responsible for the minimum-sample-size
// check before invoking it.
func Classify(current, previous *DeliveryMetrics, t Thresholds) []Candidate {
	var candidates []Candidate

	if current.DeliveryRate < t.DeliveryRateWarn {
		severity := models.SeverityHigh
		if current.DeliveryRate < t.DeliveryRateCritical {
			severity = models.SeverityCritical
		}
		candidates = append(candidates, Candidate{
			Kind:     models.KindLowDeliveryRate,
			Severity: severity,
			Title:    fmt.Sprintf("SMS delivery rate dropped to %.1f%%", current.DeliveryRate),
			Description: fmt.Sprintf("Delivery rate %.1f%% is below the %.1f%% threshold (%d of %d delivered)",
				current.DeliveryRate, t.DeliveryRateWarn, current.DeliveredCount, current.TotalCount),
			MetricValue:    current.DeliveryRate,
			ThresholdValue: t.DeliveryRateWarn,
			Metadata:       countsMetadata(current),
		})
	}

	if current.FailureRate > t.FailureRateWarn {
		severity := models.SeverityHigh
		if current.FailureRate > t.FailureRateCritical {
			severity = models.SeverityCritical
		}
		candidates = append(candidates, Candidate{
			Kind:     models.KindHighFailureRate,
			Severity: severity,
			Title:    fmt.Sprintf("SMS failure rate reached %.1f%%", current.FailureRate),
			Description: fmt.Sprintf("Failure rate %.1f%% is above the %.1f%% threshold (%d of %d failed)",
				current.FailureRate, t.FailureRateWarn, current.FailedCount, current.TotalCount),
			MetricValue:    current.FailureRate,
			ThresholdValue: t.FailureRateWarn,
			Metadata:       countsMetadata(current),
		})
	}

	// Stable order so repeated runs over the same window produce the same
	// candidate sequence.
	for _, errText := range sortedErrorKeys(current.ErrorCounts) {
		count := current.ErrorCounts[errText]
		if count < t.ErrorPatternCount {
			continue
		}
		severity := models.SeverityMedium
		if count > t.ErrorPatternHighCount {
			severity = models.SeverityHigh
		}
		candidates = append(candidates, Candidate{
			Kind:     models.KindErrorPattern,
			Severity: severity,
			Title:    fmt.Sprintf("Recurring delivery error (%d occurrences)", count),
			Description: fmt.Sprintf("Error %q occurred %d times, at or above the threshold of %d",
				errText, count, t.ErrorPatternCount),
			MetricValue:    float64(count),
			ThresholdValue: float64(t.ErrorPatternCount),
			Metadata: map[string]any{
				"error":       errText,
				"count":       count,
				"total_count": current.TotalCount,
			},
		})
	}

	if previous != nil && previous.TotalCount >= t.MinSampleSize {
		drop := previous.DeliveryRate - current.DeliveryRate
		if drop >= t.DropPoints {
			severity := models.SeverityHigh
			if drop >= t.DropPointsCritical {
				severity = models.SeverityCritical
			}
			candidates = append(candidates, Candidate{
				Kind:     models.KindSuddenDrop,
				Severity: severity,
				Title:    fmt.Sprintf("SMS delivery rate dropped %.1f points", drop),
				Description: fmt.Sprintf("Delivery rate fell from %.1f%% to %.1f%% between windows, exceeding the %.1f point threshold",
					previous.DeliveryRate, current.DeliveryRate, t.DropPoints),
				MetricValue:    drop,
				ThresholdValue: t.DropPoints,
				Metadata: map[string]any{
					"previous_rate":  previous.DeliveryRate,
					"current_rate":   current.DeliveryRate,
					"previous_total": previous.TotalCount,
					"current_total":  current.TotalCount,
				},
			})
		}
	}

	return candidates
}

func countsMetadata(m *DeliveryMetrics) map[string]any {
	return map[string]any{
		"total_count":     m.TotalCount,
		"delivered_count": m.DeliveredCount,
		"failed_count":    m.FailedCount,
		"pending_count":   m.PendingCount,
	}
}

func sortedErrorKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
