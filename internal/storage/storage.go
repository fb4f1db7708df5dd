// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/voice2fire/pulsewatch/internal/models"
)

// ErrStaleAlert is returned when a conditional escalation update finds the
// alert's level already moved (or the alert resolved) underneath it.
var ErrStaleAlert = errors.New("alert escalation state changed concurrently")

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Alerts() AlertRepository
	Rules() RuleRepository
	Responders() ResponderRepository
	DeliveryLogs() DeliveryLogRepository
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Resolved *bool
	Kind     models.AlertKind
	Severity models.Severity
	Limit    int
	Offset   int
}

// AlertRepository defines operations on persisted alerts. Create is the sole
// write path that brings alerts into existence; escalation state moves only
// through RecordEscalation, and resolution only through Resolve.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]*models.Alert, int64, error)
	// CountOpenByKind counts unresolved alerts of the given kind created at
	// or after since. Used for duplicate suppression.
	CountOpenByKind(ctx context.Context, kind models.AlertKind, since time.Time) (int64, error)
	// ListUnresolved returns all unresolved alerts, oldest first.
	ListUnresolved(ctx context.Context) ([]*models.Alert, error)
	// Resolve marks an alert resolved. Resolving an already-resolved alert
	// is a no-op.
	Resolve(ctx context.Context, id string, at time.Time) error
	// MarkNotified stamps the advisory notify_sent fields. Idempotent.
	MarkNotified(ctx context.Context, id string, at time.Time) error
	// RecordEscalation advances an alert to rec.Level, conditional on the
	// alert still being unresolved at fromLevel. Returns ErrStaleAlert when
	// the condition no longer holds.
	RecordEscalation(ctx context.Context, id string, fromLevel int, rec models.EscalationRecord, notified []string) error
}

// RuleRepository defines operations on escalation rule configuration. The
// pipeline itself only reads rules; ResetDefaults is an administrative
// operation exposed through the ops API.
type RuleRepository interface {
	Create(ctx context.Context, rule *models.EscalationRule) error
	List(ctx context.Context) ([]*models.EscalationRule, error)
	// ListBySeverity returns the rule chain for a severity ordered by level.
	ListBySeverity(ctx context.Context, severity models.Severity) ([]*models.EscalationRule, error)
	// ResetDefaults replaces all rules with the built-in default chains.
	ResetDefaults(ctx context.Context) error
}

// ResponderRepository resolves target roles into concrete recipients.
type ResponderRepository interface {
	Create(ctx context.Context, r *models.Responder) error
	// ListByRole returns active responders with the given role.
	ListByRole(ctx context.Context, role string) ([]*models.Responder, error)
}

// DeliveryLogRepository reads delivery log records. Insert exists for the
// messaging subsystem's writer and for seeding test data; the monitoring
// pipeline never writes here.
type DeliveryLogRepository interface {
	Insert(ctx context.Context, records []*models.DeliveryLogRecord) error
	// ListWindow returns records for a channel with created_at in
	// [start, end), ordered by created_at.
	ListWindow(ctx context.Context, channel models.Channel, start, end time.Time) ([]*models.DeliveryLogRecord, error)
}
