package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voice2fire/pulsewatch/internal/models"
)

const alertColumns = `id, kind, severity, title, description, metric_value, threshold_value,
	period_start, period_end, metadata_json, resolved, resolved_at,
	notify_sent, notify_sent_at, escalation_level, escalated_at,
	escalated_to_json, escalation_history_json, created_at`

type sqliteAlertRepo struct {
	db *sql.DB
}

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	metadataJSON, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	escalatedToJSON, err := json.Marshal(emptyIfNil(alert.EscalatedTo))
	if err != nil {
		return fmt.Errorf("marshal escalated_to: %w", err)
	}
	historyJSON, err := json.Marshal(emptyHistoryIfNil(alert.EscalationHistory))
	if err != nil {
		return fmt.Errorf("marshal escalation_history: %w", err)
	}

	query := `
		INSERT INTO delivery_alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.Kind, alert.Severity, alert.Title, alert.Description,
		alert.MetricValue, alert.ThresholdValue,
		alert.PeriodStart, alert.PeriodEnd, string(metadataJSON),
		boolToInt(alert.Resolved), nullTime(alert.ResolvedAt),
		boolToInt(alert.NotifySent), nullTime(alert.NotifySentAt),
		alert.EscalationLevel, nullTime(alert.EscalatedAt),
		string(escalatedToJSON), string(historyJSON), alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM delivery_alerts WHERE id = ?`
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *sqliteAlertRepo) List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error) {
	var conds []string
	var args []interface{}

	if filter.Resolved != nil {
		conds = append(conds, "resolved = ?")
		args = append(args, boolToInt(*filter.Resolved))
	}
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, filter.Severity)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM delivery_alerts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + alertColumns + ` FROM delivery_alerts` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (r *sqliteAlertRepo) CountOpenByKind(ctx context.Context, kind models.AlertKind, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM delivery_alerts WHERE kind = ? AND resolved = 0 AND created_at >= ?",
		kind, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open alerts: %w", err)
	}
	return count, nil
}

func (r *sqliteAlertRepo) ListUnresolved(ctx context.Context) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM delivery_alerts WHERE resolved = 0 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unresolved alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *sqliteAlertRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE delivery_alerts SET resolved = 1, resolved_at = ? WHERE id = ? AND resolved = 0",
		at, id,
	)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Distinguish missing from already resolved
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("alert %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

func (r *sqliteAlertRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE delivery_alerts SET notify_sent = 1, notify_sent_at = ? WHERE id = ? AND notify_sent = 0",
		at, id,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("alert %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

func (r *sqliteAlertRepo) RecordEscalation(ctx context.Context, id string, fromLevel int, rec models.EscalationRecord, notified []string) error {
	alert, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if alert == nil {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}

	history := append(alert.EscalationHistory, rec)
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal escalation_history: %w", err)
	}
	notifiedJSON, err := json.Marshal(emptyIfNil(notified))
	if err != nil {
		return fmt.Errorf("marshal escalated_to: %w", err)
	}

	// Conditional on the level we read: two overlapping scheduler runs cannot
	// both advance the same alert.
	result, err := r.db.ExecContext(ctx, `
		UPDATE delivery_alerts
		SET escalation_level = ?, escalated_at = ?, escalated_to_json = ?, escalation_history_json = ?
		WHERE id = ? AND resolved = 0 AND escalation_level = ?
	`,
		rec.Level, rec.Timestamp, string(notifiedJSON), string(historyJSON),
		id, fromLevel,
	)
	if err != nil {
		return fmt.Errorf("record escalation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrStaleAlert
	}
	return nil
}

func (r *sqliteAlertRepo) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM delivery_alerts WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check alert: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlertFields(s rowScanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var description sql.NullString
	var metadataJSON, escalatedToJSON, historyJSON string
	var resolved, notifySent int
	var resolvedAt, notifySentAt, escalatedAt sql.NullTime

	err := s.Scan(
		&alert.ID, &alert.Kind, &alert.Severity, &alert.Title, &description,
		&alert.MetricValue, &alert.ThresholdValue,
		&alert.PeriodStart, &alert.PeriodEnd, &metadataJSON,
		&resolved, &resolvedAt,
		&notifySent, &notifySentAt,
		&alert.EscalationLevel, &escalatedAt,
		&escalatedToJSON, &historyJSON, &alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Description = description.String
	alert.Resolved = resolved != 0
	alert.NotifySent = notifySent != 0
	alert.ResolvedAt = timePtr(resolvedAt)
	alert.NotifySentAt = timePtr(notifySentAt)
	alert.EscalatedAt = timePtr(escalatedAt)

	if err := json.Unmarshal([]byte(metadataJSON), &alert.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(escalatedToJSON), &alert.EscalatedTo); err != nil {
		return nil, fmt.Errorf("unmarshal escalated_to: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &alert.EscalationHistory); err != nil {
		return nil, fmt.Errorf("unmarshal escalation_history: %w", err)
	}

	return alert, nil
}

func scanAlert(row *sql.Row) (*models.Alert, error) {
	alert, err := scanAlertFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	return alert, nil
}

func scanAlerts(rows *sql.Rows) ([]*models.Alert, error) {
	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlertFields(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyHistoryIfNil(h []models.EscalationRecord) []models.EscalationRecord {
	if h == nil {
		return []models.EscalationRecord{}
	}
	return h
}
