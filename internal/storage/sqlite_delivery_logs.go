package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voice2fire/pulsewatch/internal/models"
)

type sqliteDeliveryLogRepo struct {
	db *sql.DB
}

func (r *sqliteDeliveryLogRepo) Insert(ctx context.Context, records []*models.DeliveryLogRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO delivery_logs (id, channel, status, delivery_status,
			failed_reason, error_message, recipient, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := stmt.ExecContext(ctx,
			id, rec.Channel, rec.Status, nullString(string(rec.DeliveryStatus)),
			nullString(rec.FailedReason), nullString(rec.ErrorMessage),
			nullString(rec.Recipient), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert delivery log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *sqliteDeliveryLogRepo) ListWindow(ctx context.Context, channel models.Channel, start, end time.Time) ([]*models.DeliveryLogRecord, error) {
	query := `
		SELECT id, channel, status, delivery_status, failed_reason, error_message, recipient, created_at
		FROM delivery_logs
		WHERE channel = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, channel, start, end)
	if err != nil {
		return nil, fmt.Errorf("query delivery logs: %w", err)
	}
	defer rows.Close()

	var records []*models.DeliveryLogRecord
	for rows.Next() {
		rec := &models.DeliveryLogRecord{}
		var deliveryStatus, failedReason, errorMessage, recipient sql.NullString

		err := rows.Scan(
			&rec.ID, &rec.Channel, &rec.Status, &deliveryStatus,
			&failedReason, &errorMessage, &recipient, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}

		rec.DeliveryStatus = models.DeliveryStatus(deliveryStatus.String)
		rec.FailedReason = failedReason.String
		rec.ErrorMessage = errorMessage.String
		rec.Recipient = recipient.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
