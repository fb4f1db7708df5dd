package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voice2fire/pulsewatch/internal/metrics"
	"github.com/voice2fire/pulsewatch/internal/models"
	"github.com/voice2fire/pulsewatch/internal/notifier"
	"github.com/voice2fire/pulsewatch/internal/storage"
)

// Config configures the monitoring cycle.
type Config struct {
	// Channel is the delivery channel under watch.
	Channel models.Channel

	// Window is the sampling window W; metrics cover [now-W, now) and the
	// preceding [now-2W, now-W).
	Window time.Duration

	// Cooldown suppresses a new alert of a kind while an unresolved alert of
	// the same kind exists within this span.
	Cooldown time.Duration

	// Thresholds drive classification.
	Thresholds Thresholds
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Channel == "" {
		c.Channel = models.ChannelSMS
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Minute
	}
	zero := Thresholds{}
	if c.Thresholds == zero {
		c.Thresholds = DefaultThresholds()
	}
}

// CycleResult is the structured outcome of one monitoring cycle.
type CycleResult struct {
	SampledAt        time.Time        `json:"sampled_at"`
	Current          *DeliveryMetrics `json:"current,omitempty"`
	Previous         *DeliveryMetrics `json:"previous,omitempty"`
	InsufficientData bool             `json:"insufficient_data"`
	Candidates       int              `json:"candidates"`
	Created          []*models.Alert  `json:"created,omitempty"`
	Suppressed       int              `json:"suppressed"`
	NotifyFailures   int              `json:"notify_failures"`
	Errors           []error          `json:"-"`
}

// Monitor runs the sampling/classification/persistence cycle. Stateless
// between runs except for hot-reloadable thresholds; everything durable
// lives in the alert store.
type Monitor struct {
	store      storage.Storage
	logs       storage.DeliveryLogRepository
	dispatcher *notifier.Dispatcher

	mu  sync.RWMutex
	cfg Config
}

// New creates a Monitor. logs may differ from store.DeliveryLogs() when the
// delivery log source is ClickHouse-backed; pass nil to use the store's own.
func New(store storage.Storage, logs storage.DeliveryLogRepository, dispatcher *notifier.Dispatcher, cfg Config) *Monitor {
	cfg.SetDefaults()
	if logs == nil {
		logs = store.DeliveryLogs()
	}
	return &Monitor{
		store:      store,
		logs:       logs,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// SetThresholds swaps classification thresholds; used by the hot reloader.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Thresholds = t
}

// Thresholds returns the active thresholds.
func (m *Monitor) Thresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Thresholds
}

// Run executes one monitoring cycle at the current time.
func (m *Monitor) Run(ctx context.Context) (*CycleResult, error) {
	return m.RunAt(ctx, time.Now())
}

// RunAt executes one monitoring cycle at the given time. An upstream read
// failure aborts the cycle with a non-nil error; everything downstream of
// classification degrades to per-item errors in the result.
func (m *Monitor) RunAt(ctx context.Context, now time.Time) (*CycleResult, error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues("monitor").Observe(time.Since(start).Seconds())
	}()

	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	result := &CycleResult{SampledAt: now}

	sampler := NewSampler(m.logs, cfg.Channel, cfg.Window, cfg.Thresholds.MinSampleSize)
	sample, err := sampler.SampleAt(ctx, now)
	if err != nil {
		metrics.MonitorCyclesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("sample delivery logs: %w", err)
	}

	result.Current = sample.Current
	result.Previous = sample.Previous

	if sample.Insufficient {
		result.InsufficientData = true
		metrics.MonitorCyclesTotal.WithLabelValues(metrics.OutcomeInsufficientData).Inc()
		log.Printf("monitor: insufficient data (%d records, need %d), skipping classification",
			sample.Current.TotalCount, cfg.Thresholds.MinSampleSize)
		return result, nil
	}

	candidates := Classify(sample.Current, sample.Previous, cfg.Thresholds)
	result.Candidates = len(candidates)

	for _, c := range candidates {
		alert, err := m.persistCandidate(ctx, c, sample.Current, now, cfg.Cooldown)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("persist %s: %w", c.Kind, err))
			continue
		}
		if alert == nil {
			result.Suppressed++
			metrics.AlertsSuppressedTotal.Inc()
			continue
		}
		result.Created = append(result.Created, alert)
		metrics.AlertsCreatedTotal.WithLabelValues(string(alert.Kind), string(alert.Severity)).Inc()
	}

	// Best-effort admin notification per new alert. Failures are logged and
	// counted; they never fail the cycle or roll back the alert.
	for _, alert := range result.Created {
		if m.dispatcher == nil {
			break
		}
		if err := m.notifyCreated(ctx, alert, now); err != nil {
			result.NotifyFailures++
			metrics.NotifyFailuresTotal.WithLabelValues(metrics.StageCreate).Inc()
			log.Printf("monitor: notify for alert %s failed: %v", alert.ID, err)
		} else {
			metrics.NotifySentTotal.WithLabelValues(metrics.StageCreate).Inc()
		}
	}

	metrics.MonitorCyclesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	log.Printf("monitor: cycle done: %d candidates, %d created, %d suppressed, %d errors",
		result.Candidates, len(result.Created), result.Suppressed, len(result.Errors))

	return result, nil
}

// persistCandidate dedupes a candidate against open alerts of the same kind
// within the cooldown window and persists it when no duplicate exists.
// Returns nil, nil when the candidate was suppressed.
func (m *Monitor) persistCandidate(ctx context.Context, c Candidate, window *DeliveryMetrics, now time.Time, cooldown time.Duration) (*models.Alert, error) {
	open, err := m.store.Alerts().CountOpenByKind(ctx, c.Kind, now.Add(-cooldown))
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}
	if open > 0 {
		log.Printf("monitor: %s suppressed, open alert within cooldown", c.Kind)
		return nil, nil
	}

	alert := &models.Alert{
		ID:             uuid.New().String(),
		Kind:           c.Kind,
		Severity:       c.Severity,
		Title:          c.Title,
		Description:    c.Description,
		MetricValue:    c.MetricValue,
		ThresholdValue: c.ThresholdValue,
		PeriodStart:    window.PeriodStart,
		PeriodEnd:      window.PeriodEnd,
		Metadata:       c.Metadata,
		CreatedAt:      now,
	}

	if err := m.store.Alerts().Create(ctx, alert); err != nil {
		return nil, err
	}

	log.Printf("monitor: alert created: %s %s (%s)", alert.Severity, alert.Kind, alert.ID)
	return alert, nil
}

// notifyCreated dispatches the admin notification for a fresh alert and, on
// success, stamps the advisory notify_sent marker. The stamp is idempotent
// and its failure is logged but not surfaced.
func (m *Monitor) notifyCreated(ctx context.Context, alert *models.Alert, now time.Time) error {
	n := &notifier.Notification{
		Title:    alert.Title,
		Message:  alert.Description,
		Priority: alert.Priority(),
		Metadata: map[string]any{
			"alert_id":        alert.ID,
			"kind":            string(alert.Kind),
			"severity":        string(alert.Severity),
			"metric_value":    alert.MetricValue,
			"threshold_value": alert.ThresholdValue,
		},
	}

	res := m.dispatcher.Dispatch(ctx, n)
	if !res.AnySucceeded() {
		return fmt.Errorf("dispatch failed: %v", res.Errors)
	}

	if err := m.store.Alerts().MarkNotified(ctx, alert.ID, now); err != nil {
		log.Printf("monitor: mark notified for alert %s failed: %v", alert.ID, err)
	}
	return nil
}
