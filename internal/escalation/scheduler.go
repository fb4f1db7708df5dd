// Package escalation advances unresolved alerts through their severity's
// escalation chain, notifying the responsible role at each level.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/voice2fire/pulsewatch/internal/metrics"
	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/notifier"
	"github.com/voice2fire/pulsewatch/internal/storage"
)

// RunResult is the structured outcome of one escalation sweep.
type RunResult struct {
	Scanned    int             `json:"scanned"`
	Escalated  []*models.Alert `json:"escalated,omitempty"`
	NotDue     int             `json:"not_due"`
	AtMaxLevel int             `json:"at_max_level"`
	Skipped    int             `json:"skipped"`
	Errors     []error         `json:"-"`
}

// Scheduler scans unresolved alerts and escalates those overdue at their
// current level.
type Scheduler struct {
	store      storage.Storage
	dispatcher *notifier.Dispatcher
}

// NewScheduler creates a Scheduler.
func NewScheduler(store storage.Storage, dispatcher *notifier.Dispatcher) *Scheduler {
	return &Scheduler{store: store, dispatcher: dispatcher}
}

// Run executes one escalation sweep at the current time.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	return s.RunAt(ctx, time.Now())
}

// RunAt executes one escalation sweep at the given time. Rule and alert list
// failures abort the sweep; per-alert failures are collected and the sweep
// continues.
func (s *Scheduler) RunAt(ctx context.Context, now time.Time) (*RunResult, error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("escalate").Observe(time.Since(start).Seconds())
	}()

	rules, err := s.store.Rules().List(ctx)
	if err != nil {
		metrics.EscalationRunsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("load escalation rules: %w", err)
	}

	chains := make(map[models.Severity][]*models.EscalationRule)
	for _, r := range rules {
		chains[r.Severity] = append(chains[r.Severity], r)
	}

	alerts, err := s.store.Alerts().ListUnresolved(ctx)
	if err != nil {
		metrics.EscalationRunsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("list unresolved alerts: %w", err)
	}

	result := &RunResult{Scanned: len(alerts)}

	for _, alert := range alerts {
		switch outcome, err := s.escalateAlert(ctx, alert, chains[alert.Severity], now); {
		case err != nil:
			result.Errors = append(result.Errors, fmt.Errorf("alert %s: %w", alert.ID, err))
		case outcome == outcomeEscalated:
			result.Escalated = append(result.Escalated, alert)
			metrics.EscalationsTotal.WithLabelValues(string(alert.Severity)).Inc()
		case outcome == outcomeNotDue:
			result.NotDue++
		case outcome == outcomeAtMax:
			result.AtMaxLevel++
		case outcome == outcomeSkipped:
			result.Skipped++
		}
	}

	metrics.EscalationRunsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	log.Printf("escalation: sweep done: %d scanned, %d escalated, %d not due, %d at max, %d skipped, %d errors",
		result.Scanned, len(result.Escalated), result.NotDue, result.AtMaxLevel, result.Skipped, len(result.Errors))

	return result, nil
}

type escalationOutcome int

const (
	outcomeEscalated escalationOutcome = iota
	outcomeNotDue
	outcomeAtMax
	outcomeSkipped
)

// escalateAlert advances a single alert by one level if it is overdue.
// On success alert is updated in place with the new level and history.
func (s *Scheduler) escalateAlert(ctx context.Context, alert *models.Alert, chain []*models.EscalationRule, now time.Time) (escalationOutcome, error) {
	if len(chain) == 0 {
		log.Printf("escalation: no chain configured for severity %s, skipping alert %s", alert.Severity, alert.ID)
		return outcomeSkipped, nil
	}

	next := nextRule(chain, alert.EscalationLevel)
	if next == nil {
		return outcomeAtMax, nil
	}

	elapsed := now.Sub(alert.LastTransitionAt())
	if elapsed < next.TimeThreshold {
		return outcomeNotDue, nil
	}

	responders, err := s.store.Responders().ListByRole(ctx, next.TargetRole)
	if err != nil {
		log.Printf("escalation: responder lookup for role %s failed: %v", next.TargetRole, err)
		return outcomeSkipped, nil
	}
	if len(responders) == 0 {
		log.Printf("escalation: no active responders for role %s, skipping alert %s", next.TargetRole, alert.ID)
		return outcomeSkipped, nil
	}

	recipients := make([]string, len(responders))
	for i, r := range responders {
		recipients[i] = r.ID
	}

	n := &notifier.Notification{
		Title:      escalationTitle(alert, next),
		Message:    escalationMessage(alert, next, elapsed),
		Priority:   alert.Priority(),
		Recipients: recipients,
		Channels:   next.ChannelStrings(),
		Metadata: map[string]any{
			"alert_id":         alert.ID,
			"kind":             string(alert.Kind),
			"severity":         string(alert.Severity),
			"escalation_level": next.Level,
			"target_role":      next.TargetRole,
		},
	}

	res := s.dispatcher.Dispatch(ctx, n)
	if !res.AnySucceeded() {
		metrics.NotifyFailuresTotal.WithLabelValues(metrics.StageEscalate).Inc()
		return outcomeSkipped, fmt.Errorf("level %d notification failed: %v", next.Level, res.Errors)
	}
	metrics.NotifySentTotal.WithLabelValues(metrics.StageEscalate).Inc()

	rec := models.EscalationRecord{
		Level:     next.Level,
		Timestamp: now,
		Notified:  len(recipients),
		Channels:  next.ChannelStrings(),
	}

	err = s.store.Alerts().RecordEscalation(ctx, alert.ID, alert.EscalationLevel, rec, recipients)
	if errors.Is(err, storage.ErrStaleAlert) {
		// Another process advanced or resolved the alert between our read and
		// write. The double notification is accepted; the state is not ours
		// to overwrite.
		log.Printf("escalation: alert %s changed concurrently, leaving as-is", alert.ID)
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, fmt.Errorf("record escalation: %w", err)
	}

	alert.EscalationLevel = next.Level
	alert.EscalatedAt = &now
	alert.EscalatedTo = recipients
	alert.EscalationHistory = append(alert.EscalationHistory, rec)

	log.Printf("escalation: alert %s escalated to level %d (%s)", alert.ID, next.Level, next.TargetRole)
	return outcomeEscalated, nil
}

// nextRule finds the chain entry one level above current, or nil when the
// alert is already at the top of its chain.
func nextRule(chain []*models.EscalationRule, current int) *models.EscalationRule {
	for _, r := range chain {
		if r.Level == current+1 {
			return r
		}
	}
	return nil
}

func escalationTitle(alert *models.Alert, rule *models.EscalationRule) string {
	return fmt.Sprintf("[ESCALATION L%d] %s", rule.Level, alert.Title)
}

func escalationMessage(alert *models.Alert, rule *models.EscalationRule, elapsed time.Duration) string {
	return fmt.Sprintf("%s\n\nUnacknowledged for %s at level %d, escalating to %s.",
		alert.Description, elapsed.Round(time.Minute), rule.Level-1, rule.TargetRole)
}
