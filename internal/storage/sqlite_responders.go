package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voice2fire/pulsewatch/internal/models"
)

type sqliteResponderRepo struct {
	db *sql.DB
}

func (r *sqliteResponderRepo) Create(ctx context.Context, responder *models.Responder) error {
	query := `
		INSERT INTO responders (id, name, role, email, phone, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		responder.ID, responder.Name, responder.Role,
		nullString(responder.Email), nullString(responder.Phone),
		boolToInt(responder.Active), responder.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert responder: %w", err)
	}
	return nil
}

func (r *sqliteResponderRepo) ListByRole(ctx context.Context, role string) ([]*models.Responder, error) {
	query := `
		SELECT id, name, role, email, phone, active, created_at
		FROM responders WHERE role = ? AND active = 1 ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("query responders: %w", err)
	}
	defer rows.Close()

	var responders []*models.Responder
	for rows.Next() {
		responder := &models.Responder{}
		var email, phone sql.NullString
		var active int

		err := rows.Scan(
			&responder.ID, &responder.Name, &responder.Role,
			&email, &phone, &active, &responder.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan responder: %w", err)
		}

		responder.Email = email.String
		responder.Phone = phone.String
		responder.Active = active != 0
		responders = append(responders, responder)
	}
	return responders, rows.Err()
}
