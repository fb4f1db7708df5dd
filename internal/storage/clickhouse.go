package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/voice2fire/pulsewatch/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	// Database is the ClickHouse database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for delivery log retention.
	RetentionDays int
}

// ClickHouseDeliveryLogs is a DeliveryLogRepository backed by ClickHouse.
// The Voice2Fire messaging subsystem writes delivery logs at a volume SQLite
// is not meant for; deployments that stream those logs into ClickHouse point
// the sampler here instead of at the local table.
type ClickHouseDeliveryLogs struct {
	config *ClickHouseConfig
	db     *sql.DB
}

// NewClickHouseDeliveryLogs creates a new ClickHouse-backed delivery log source.
func NewClickHouseDeliveryLogs(config *ClickHouseConfig) *ClickHouseDeliveryLogs {
	// Apply defaults
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 30
	}

	return &ClickHouseDeliveryLogs{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseDeliveryLogs) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}

	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *ClickHouseDeliveryLogs) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *ClickHouseDeliveryLogs) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the delivery_logs table if it doesn't exist.
func (s *ClickHouseDeliveryLogs) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS delivery_logs (
			id String,
			channel LowCardinality(String),
			status LowCardinality(String),
			delivery_status LowCardinality(String),
			failed_reason String,
			error_message String,
			recipient String,
			created_at DateTime64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMMDD(created_at)
		ORDER BY (channel, created_at)
		TTL toDateTime(created_at) + INTERVAL %d DAY
	`, s.config.RetentionDays)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create delivery_logs table: %w", err)
	}
	return nil
}

// Insert inserts delivery log records using batch insert.
func (s *ClickHouseDeliveryLogs) Insert(ctx context.Context, records []*models.DeliveryLogRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
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
			id, string(rec.Channel), string(rec.Status), string(rec.DeliveryStatus),
			rec.FailedReason, rec.ErrorMessage, rec.Recipient, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListWindow returns records for a channel with created_at in [start, end).
func (s *ClickHouseDeliveryLogs) ListWindow(ctx context.Context, channel models.Channel, start, end time.Time) ([]*models.DeliveryLogRecord, error) {
	query := `
		SELECT id, channel, status, delivery_status, failed_reason, error_message, recipient, created_at
		FROM delivery_logs
		WHERE channel = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, string(channel), start, end)
	if err != nil {
		return nil, fmt.Errorf("query delivery logs: %w", err)
	}
	defer rows.Close()

	var records []*models.DeliveryLogRecord
	for rows.Next() {
		rec := &models.DeliveryLogRecord{}
		var channel, status, deliveryStatus string

		err := rows.Scan(
			&rec.ID, &channel, &status, &deliveryStatus,
			&rec.FailedReason, &rec.ErrorMessage, &rec.Recipient, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec.Channel = models.Channel(channel)
		rec.Status = models.SendStatus(status)
		rec.DeliveryStatus = models.DeliveryStatus(deliveryStatus)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return records, nil
}
