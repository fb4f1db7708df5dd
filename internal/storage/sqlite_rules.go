package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voice2fire/pulsewatch/internal/models"
)

type sqliteRuleRepo struct {
	db *sql.DB
}

// defaultRuleChains are the built-in escalation chains seeded by
// ResetDefaults. Time thresholds are minutes of unresolved age required to
// reach the level; level 0 is the immediate rule.
type defaultRule struct {
	level      int
	minutes    int
	targetRole string
	channels   []models.NotifyChannel
}

var defaultRuleChains = map[models.Severity][]defaultRule{
	models.SeverityCritical: {
		{0, 0, models.RoleOnCall, []models.NotifyChannel{models.NotifyInApp, models.NotifySMS}},
		{1, 15, models.RoleTeamLead, []models.NotifyChannel{models.NotifyInApp, models.NotifySMS, models.NotifyEmail}},
		{2, 30, models.RoleManager, []models.NotifyChannel{models.NotifyInApp, models.NotifySMS, models.NotifyEmail}},
		{3, 60, models.RoleDirector, []models.NotifyChannel{models.NotifyInApp, models.NotifySMS, models.NotifyEmail}},
	},
	models.SeverityHigh: {
		{0, 0, models.RoleOnCall, []models.NotifyChannel{models.NotifyInApp}},
		{1, 30, models.RoleTeamLead, []models.NotifyChannel{models.NotifyInApp, models.NotifyEmail}},
		{2, 120, models.RoleManager, []models.NotifyChannel{models.NotifyInApp, models.NotifyEmail}},
	},
	models.SeverityMedium: {
		{0, 0, models.RoleOnCall, []models.NotifyChannel{models.NotifyInApp}},
		{1, 240, models.RoleTeamLead, []models.NotifyChannel{models.NotifyInApp, models.NotifyEmail}},
	},
}

func (r *sqliteRuleRepo) Create(ctx context.Context, rule *models.EscalationRule) error {
	channelsJSON, err := json.Marshal(rule.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		INSERT INTO escalation_rules (id, severity, level, time_threshold_minutes,
			target_role, channels_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Severity, rule.Level, int(rule.TimeThreshold.Minutes()),
		rule.TargetRole, string(channelsJSON), rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *sqliteRuleRepo) List(ctx context.Context) ([]*models.EscalationRule, error) {
	query := `
		SELECT id, severity, level, time_threshold_minutes, target_role, channels_json, created_at, updated_at
		FROM escalation_rules ORDER BY severity, level
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *sqliteRuleRepo) ListBySeverity(ctx context.Context, severity models.Severity) ([]*models.EscalationRule, error) {
	query := `
		SELECT id, severity, level, time_threshold_minutes, target_role, channels_json, created_at, updated_at
		FROM escalation_rules WHERE severity = ? ORDER BY level
	`
	rows, err := r.db.QueryContext(ctx, query, severity)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *sqliteRuleRepo) ResetDefaults(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM escalation_rules"); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	now := time.Now()
	for severity, chain := range defaultRuleChains {
		for _, d := range chain {
			channelsJSON, err := json.Marshal(d.channels)
			if err != nil {
				return fmt.Errorf("marshal channels: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO escalation_rules (id, severity, level, time_threshold_minutes,
					target_role, channels_json, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				uuid.New().String(), severity, d.level, d.minutes,
				d.targetRole, string(channelsJSON), now, now,
			)
			if err != nil {
				return fmt.Errorf("seed rule %s/%d: %w", severity, d.level, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]*models.EscalationRule, error) {
	var rules []*models.EscalationRule
	for rows.Next() {
		rule := &models.EscalationRule{}
		var minutes int
		var channelsJSON string

		err := rows.Scan(
			&rule.ID, &rule.Severity, &rule.Level, &minutes,
			&rule.TargetRole, &channelsJSON, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}

		rule.TimeThreshold = time.Duration(minutes) * time.Minute
		if err := json.Unmarshal([]byte(channelsJSON), &rule.Channels); err != nil {
			return nil, fmt.Errorf("unmarshal channels: %w", err)
		}

		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
