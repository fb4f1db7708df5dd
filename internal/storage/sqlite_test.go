package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voice2fire/pulsewatch/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	store := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testAlert(kind models.AlertKind, severity models.Severity, createdAt time.Time) *models.Alert {
	return &models.Alert{
		ID:             uuid.New().String(),
		Kind:           kind,
		Severity:       severity,
		Title:          "test alert",
		Description:    "something went wrong",
		MetricValue:    62.5,
		ThresholdValue: 85,
		PeriodStart:    createdAt.Add(-time.Hour),
		PeriodEnd:      createdAt,
		Metadata:       map[string]any{"total_count": float64(100)},
		CreatedAt:      createdAt,
	}
}

func TestAlertCreateAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	alert := testAlert(models.KindLowDeliveryRate, models.SeverityCritical, time.Now())
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if got == nil {
		t.Fatal("alert not found")
	}

	if got.Kind != alert.Kind || got.Severity != alert.Severity {
		t.Errorf("kind/severity = %s/%s, want %s/%s", got.Kind, got.Severity, alert.Kind, alert.Severity)
	}
	if got.MetricValue != alert.MetricValue {
		t.Errorf("MetricValue = %v, want %v", got.MetricValue, alert.MetricValue)
	}
	if got.Resolved || got.NotifySent {
		t.Errorf("fresh alert resolved=%v notify_sent=%v, want false/false", got.Resolved, got.NotifySent)
	}
	if got.EscalationLevel != 0 {
		t.Errorf("EscalationLevel = %d, want 0", got.EscalationLevel)
	}
	if got.Metadata["total_count"] != float64(100) {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if len(got.EscalationHistory) != 0 {
		t.Errorf("EscalationHistory = %v, want empty", got.EscalationHistory)
	}
}

func TestAlertGetMissing(t *testing.T) {
	store := setupTestDB(t)

	got, err := store.Alerts().GetByID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestAlertListFilters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	a1 := testAlert(models.KindLowDeliveryRate, models.SeverityCritical, now.Add(-3*time.Hour))
	a2 := testAlert(models.KindHighFailureRate, models.SeverityHigh, now.Add(-2*time.Hour))
	a3 := testAlert(models.KindLowDeliveryRate, models.SeverityHigh, now.Add(-time.Hour))
	for _, a := range []*models.Alert{a1, a2, a3} {
		if err := store.Alerts().Create(ctx, a); err != nil {
			t.Fatalf("create alert: %v", err)
		}
	}
	if err := store.Alerts().Resolve(ctx, a1.ID, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	resolved := false
	tests := []struct {
		name      string
		filter    AlertFilter
		wantIDs   []string
		wantTotal int64
	}{
		{
			name:      "no filter, newest first",
			filter:    AlertFilter{},
			wantIDs:   []string{a3.ID, a2.ID, a1.ID},
			wantTotal: 3,
		},
		{
			name:      "unresolved only",
			filter:    AlertFilter{Resolved: &resolved},
			wantIDs:   []string{a3.ID, a2.ID},
			wantTotal: 2,
		},
		{
			name:      "by kind",
			filter:    AlertFilter{Kind: models.KindLowDeliveryRate},
			wantIDs:   []string{a3.ID, a1.ID},
			wantTotal: 2,
		},
		{
			name:      "by severity",
			filter:    AlertFilter{Severity: models.SeverityCritical},
			wantIDs:   []string{a1.ID},
			wantTotal: 1,
		},
		{
			name:      "pagination",
			filter:    AlertFilter{Limit: 1, Offset: 1},
			wantIDs:   []string{a2.ID},
			wantTotal: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts, total, err := store.Alerts().List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(alerts) != len(tt.wantIDs) {
				t.Fatalf("got %d alerts, want %d", len(alerts), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if alerts[i].ID != want {
					t.Errorf("alerts[%d].ID = %s, want %s", i, alerts[i].ID, want)
				}
			}
		})
	}
}

func TestCountOpenByKind(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	recent := testAlert(models.KindLowDeliveryRate, models.SeverityHigh, now.Add(-10*time.Minute))
	old := testAlert(models.KindLowDeliveryRate, models.SeverityHigh, now.Add(-2*time.Hour))
	resolved := testAlert(models.KindLowDeliveryRate, models.SeverityHigh, now.Add(-5*time.Minute))
	otherKind := testAlert(models.KindSuddenDrop, models.SeverityHigh, now.Add(-5*time.Minute))
	for _, a := range []*models.Alert{recent, old, resolved, otherKind} {
		if err := store.Alerts().Create(ctx, a); err != nil {
			t.Fatalf("create alert: %v", err)
		}
	}
	if err := store.Alerts().Resolve(ctx, resolved.ID, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Only the recent unresolved alert of the matching kind counts within a
	// 30 minute cooldown.
	count, err := store.Alerts().CountOpenByKind(ctx, models.KindLowDeliveryRate, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestResolveIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	alert := testAlert(models.KindHighFailureRate, models.SeverityHigh, now)
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Alerts().Resolve(ctx, alert.ID, now); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	first, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil || first == nil || first.ResolvedAt == nil {
		t.Fatalf("reload after resolve: %+v, err %v", first, err)
	}

	// Second resolve is a no-op and keeps the original timestamp.
	if err := store.Alerts().Resolve(ctx, alert.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	second, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil || second == nil || second.ResolvedAt == nil {
		t.Fatalf("reload after second resolve: %v", err)
	}
	if !second.ResolvedAt.Equal(*first.ResolvedAt) {
		t.Errorf("ResolvedAt changed on repeat resolve: %v -> %v", first.ResolvedAt, second.ResolvedAt)
	}

	// Resolving a missing alert reports not found.
	err = store.Alerts().Resolve(ctx, "no-such-id", now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("resolve missing = %v, want ErrNotFound", err)
	}
}

func TestRecordEscalation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	alert := testAlert(models.KindLowDeliveryRate, models.SeverityCritical, now.Add(-time.Hour))
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := models.EscalationRecord{
		Level:     1,
		Timestamp: now,
		Notified:  1,
		Channels:  []string{"in_app", "sms"},
	}
	if err := store.Alerts().RecordEscalation(ctx, alert.ID, 0, rec, []string{"resp-1"}); err != nil {
		t.Fatalf("record escalation: %v", err)
	}

	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil || got == nil {
		t.Fatalf("reload: %v", err)
	}
	if got.EscalationLevel != 1 {
		t.Errorf("EscalationLevel = %d, want 1", got.EscalationLevel)
	}
	if got.EscalatedAt == nil {
		t.Error("EscalatedAt not set")
	}
	if len(got.EscalatedTo) != 1 || got.EscalatedTo[0] != "resp-1" {
		t.Errorf("EscalatedTo = %v, want [resp-1]", got.EscalatedTo)
	}
	if len(got.EscalationHistory) != 1 || got.EscalationHistory[0].Level != 1 {
		t.Errorf("EscalationHistory = %+v", got.EscalationHistory)
	}

	// Repeating the same transition is stale.
	err = store.Alerts().RecordEscalation(ctx, alert.ID, 0, rec, []string{"resp-1"})
	if !errors.Is(err, ErrStaleAlert) {
		t.Errorf("stale escalation = %v, want ErrStaleAlert", err)
	}

	// Escalating a resolved alert is stale too.
	if err := store.Alerts().Resolve(ctx, alert.ID, now); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rec.Level = 2
	err = store.Alerts().RecordEscalation(ctx, alert.ID, 1, rec, nil)
	if !errors.Is(err, ErrStaleAlert) {
		t.Errorf("escalate resolved = %v, want ErrStaleAlert", err)
	}
}

func TestRulesResetDefaults(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.Rules().ResetDefaults(ctx); err != nil {
		t.Fatalf("reset defaults: %v", err)
	}

	rules, err := store.Rules().List(ctx)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	// 4 critical + 3 high + 2 medium
	if len(rules) != 9 {
		t.Errorf("got %d rules, want 9", len(rules))
	}

	critical, err := store.Rules().ListBySeverity(ctx, models.SeverityCritical)
	if err != nil {
		t.Fatalf("list by severity: %v", err)
	}
	if len(critical) != 4 {
		t.Fatalf("got %d critical rules, want 4", len(critical))
	}
	wantThresholds := []time.Duration{0, 15 * time.Minute, 30 * time.Minute, time.Hour}
	for i, rule := range critical {
		if rule.Level != i {
			t.Errorf("critical[%d].Level = %d, want %d", i, rule.Level, i)
		}
		if rule.TimeThreshold != wantThresholds[i] {
			t.Errorf("critical[%d].TimeThreshold = %v, want %v", i, rule.TimeThreshold, wantThresholds[i])
		}
		if len(rule.Channels) == 0 {
			t.Errorf("critical[%d] has no channels", i)
		}
	}
	if critical[3].TargetRole != models.RoleDirector {
		t.Errorf("critical[3].TargetRole = %s, want %s", critical[3].TargetRole, models.RoleDirector)
	}

	// Reset twice does not duplicate.
	if err := store.Rules().ResetDefaults(ctx); err != nil {
		t.Fatalf("second reset: %v", err)
	}
	rules, err = store.Rules().List(ctx)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 9 {
		t.Errorf("after second reset got %d rules, want 9", len(rules))
	}
}

func TestRespondersListByRole(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	active := &models.Responder{ID: uuid.New().String(), Name: "a", Role: models.RoleOnCall, Active: true, CreatedAt: now}
	inactive := &models.Responder{ID: uuid.New().String(), Name: "b", Role: models.RoleOnCall, Active: false, CreatedAt: now}
	lead := &models.Responder{ID: uuid.New().String(), Name: "c", Role: models.RoleTeamLead, Active: true, CreatedAt: now}
	for _, r := range []*models.Responder{active, inactive, lead} {
		if err := store.Responders().Create(ctx, r); err != nil {
			t.Fatalf("create responder: %v", err)
		}
	}

	got, err := store.Responders().ListByRole(ctx, models.RoleOnCall)
	if err != nil {
		t.Fatalf("list by role: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("ListByRole = %+v, want only the active on_call responder", got)
	}
}

func TestDeliveryLogsWindow(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	records := []*models.DeliveryLogRecord{
		{Channel: models.ChannelSMS, Status: models.SendStatusSent, DeliveryStatus: models.DeliveryStatusDelivered, CreatedAt: now.Add(-30 * time.Minute)},
		{Channel: models.ChannelSMS, Status: models.SendStatusFailed, FailedReason: "carrier rejected", CreatedAt: now.Add(-20 * time.Minute)},
		{Channel: models.ChannelSMS, Status: models.SendStatusSent, CreatedAt: now.Add(-90 * time.Minute)}, // outside window
		{Channel: models.ChannelEmail, Status: models.SendStatusSent, CreatedAt: now.Add(-10 * time.Minute)},
	}
	if err := store.DeliveryLogs().Insert(ctx, records); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.DeliveryLogs().ListWindow(ctx, models.ChannelSMS, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Ordered by created_at.
	if !got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Error("records not ordered by created_at")
	}
	if got[1].FailedReason != "carrier rejected" {
		t.Errorf("FailedReason = %q", got[1].FailedReason)
	}
}

func TestMarkNotifiedIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	alert := testAlert(models.KindErrorPattern, models.SeverityMedium, now)
	if err := store.Alerts().Create(ctx, alert); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Alerts().MarkNotified(ctx, alert.ID, now); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	if err := store.Alerts().MarkNotified(ctx, alert.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("repeat mark notified: %v", err)
	}

	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil || got == nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.NotifySent || got.NotifySentAt == nil {
		t.Errorf("notify stamp missing: %+v", got)
	}
	if diff := got.NotifySentAt.Sub(now); diff < -time.Second || diff > time.Second {
		t.Errorf("NotifySentAt = %v, want first-call timestamp %v", got.NotifySentAt, now)
	}

	err = store.Alerts().MarkNotified(ctx, "no-such-id", now)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("mark notified missing = %v, want ErrNotFound", err)
	}
}
