package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Delivery alerts
			CREATE TABLE IF NOT EXISTS delivery_alerts (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				severity TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT,
				metric_value REAL NOT NULL,
				threshold_value REAL NOT NULL,
				period_start DATETIME NOT NULL,
				period_end DATETIME NOT NULL,
				metadata_json TEXT NOT NULL DEFAULT '{}',
				resolved INTEGER NOT NULL DEFAULT 0,
				resolved_at DATETIME,
				notify_sent INTEGER NOT NULL DEFAULT 0,
				notify_sent_at DATETIME,
				escalation_level INTEGER NOT NULL DEFAULT 0,
				escalated_at DATETIME,
				escalated_to_json TEXT NOT NULL DEFAULT '[]',
				escalation_history_json TEXT NOT NULL DEFAULT '[]',
				created_at DATETIME NOT NULL
			);

			-- Escalation rule chains, keyed by severity
			CREATE TABLE IF NOT EXISTS escalation_rules (
				id TEXT PRIMARY KEY,
				severity TEXT NOT NULL,
				level INTEGER NOT NULL,
				time_threshold_minutes INTEGER NOT NULL,
				target_role TEXT NOT NULL,
				channels_json TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (severity, level)
			);

			-- Responder directory
			CREATE TABLE IF NOT EXISTS responders (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				role TEXT NOT NULL,
				email TEXT,
				phone TEXT,
				active INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL
			);

			-- Delivery log records (written by the messaging subsystem)
			CREATE TABLE IF NOT EXISTS delivery_logs (
				id TEXT PRIMARY KEY,
				channel TEXT NOT NULL,
				status TEXT NOT NULL,
				delivery_status TEXT,
				failed_reason TEXT,
				error_message TEXT,
				recipient TEXT,
				created_at DATETIME NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON delivery_alerts(resolved);
			CREATE INDEX IF NOT EXISTS idx_alerts_kind_created ON delivery_alerts(kind, created_at);
			CREATE INDEX IF NOT EXISTS idx_rules_severity_level ON escalation_rules(severity, level);
			CREATE INDEX IF NOT EXISTS idx_responders_role ON responders(role, active);
			CREATE INDEX IF NOT EXISTS idx_delivery_logs_window ON delivery_logs(channel, created_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
