package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AlertStore = (*AlertRepo)(nil)

// Default and maximum page sizes for alert listings.
const (
	defaultAlertPageSize = 50
	maxAlertPageSize     = 500
)

// AlertRepo is the SQLite implementation of the AlertStore port interface.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new AlertRepo backed by the given DB.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

const alertColumns = `
	id, watchlist_id, webhook_id, device_id, upload_batch, matched_domains, match_type,
	credential_match_count, url_match_count, payload, status, http_status, error_message,
	retry_count, delivery_id, created_at, updated_at`

// Create inserts a new alert row.
func (r *AlertRepo) Create(ctx context.Context, a model.Alert) (int64, error) {
	const query = `
		INSERT INTO alerts (
			watchlist_id, webhook_id, device_id, upload_batch, matched_domains, match_type,
			credential_match_count, url_match_count, payload, status, http_status, error_message,
			retry_count, delivery_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		a.WatchlistID, a.WebhookID, a.DeviceID, a.UploadBatch, a.MatchedDomains, string(a.MatchType),
		a.CredentialMatchCount, a.URLMatchCount, a.Payload, string(a.Status), nullInt(a.HTTPStatus), nullString(a.ErrorMessage),
		a.RetryCount, a.DeliveryID, formatTime(createdAt), formatTime(updatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("create alert for watchlist %d webhook %d: %w", a.WatchlistID, a.WebhookID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get alert id: %w", err)
	}

	return id, nil
}

// Update rewrites the delivery outcome fields of an existing alert.
func (r *AlertRepo) Update(ctx context.Context, a model.Alert) error {
	const query = `
		UPDATE alerts
		SET status = ?, http_status = ?, error_message = ?, retry_count = ?, updated_at = ?
		WHERE id = ?
	`

	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(a.Status), nullInt(a.HTTPStatus), nullString(a.ErrorMessage), a.RetryCount, formatTime(updatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert %d: %w", a.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update alert %d: %w", a.ID, driven.ErrAlertNotFound)
	}

	return nil
}

// GetByID retrieves an alert by ID. Returns nil, nil if it does not exist.
func (r *AlertRepo) GetByID(ctx context.Context, id int64) (*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	a, err := scanAlert(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}

	return a, nil
}

// List returns one page of alerts matching the filter, newest first, together
// with the total count of matching alerts.
func (r *AlertRepo) List(ctx context.Context, filter model.AlertFilter) ([]model.Alert, int, error) {
	where, args := alertWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM alerts` + where
	if err := r.db.Reader.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultAlertPageSize
	}
	if perPage > maxAlertPageSize {
		perPage = maxAlertPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), perPage, (page-1)*perPage)

	rows, err := r.db.Reader.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, total, nil
}

// Stats returns aggregate alert counts. Today starts at midnight UTC of now.
func (r *AlertRepo) Stats(ctx context.Context, now time.Time) (model.AlertStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'retrying' THEN 1 ELSE 0 END), 0)
		FROM alerts
	`

	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)

	var stats model.AlertStats
	err := r.db.Reader.QueryRowContext(ctx, query, formatTime(midnight)).Scan(
		&stats.Total, &stats.Today, &stats.Success, &stats.Failed, &stats.Retrying,
	)
	if err != nil {
		return model.AlertStats{}, fmt.Errorf("alert stats: %w", err)
	}

	return stats, nil
}

func alertWhere(filter model.AlertFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.WatchlistID != 0 {
		clauses = append(clauses, "watchlist_id = ?")
		args = append(args, filter.WatchlistID)
	}
	if filter.WebhookID != 0 {
		clauses = append(clauses, "webhook_id = ?")
		args = append(args, filter.WebhookID)
	}
	if filter.DeviceID != "" {
		clauses = append(clauses, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanAlert(s scanner) (*model.Alert, error) {
	var a model.Alert
	var matchType, status, createdAt, updatedAt string
	var httpStatus sql.NullInt64
	var errorMessage sql.NullString

	err := s.Scan(
		&a.ID, &a.WatchlistID, &a.WebhookID, &a.DeviceID, &a.UploadBatch, &a.MatchedDomains, &matchType,
		&a.CredentialMatchCount, &a.URLMatchCount, &a.Payload, &status, &httpStatus, &errorMessage,
		&a.RetryCount, &a.DeliveryID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.MatchType = model.MatchType(matchType)
	a.Status = model.AlertStatus(status)

	if httpStatus.Valid {
		code := int(httpStatus.Int64)
		a.HTTPStatus = &code
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		a.ErrorMessage = &msg
	}

	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	a.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &a, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
