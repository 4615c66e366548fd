package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CorpusReader = (*CorpusRepo)(nil)

// CorpusRepo is the SQLite implementation of the CorpusReader port interface.
// It only reads rows already committed by the ingestion pipeline.
type CorpusRepo struct {
	db *DB
}

// NewCorpusRepo creates a new CorpusRepo backed by the given DB.
func NewCorpusRepo(db *DB) *CorpusRepo {
	return &CorpusRepo{db: db}
}

// ListLoginRecords returns every credential row for the device with a non-empty login.
func (r *CorpusRepo) ListLoginRecords(ctx context.Context, deviceID string) ([]model.CredentialRecord, error) {
	const query = `
		SELECT url, domain, login, password, browser, created_at
		FROM credentials
		WHERE device_id = ? AND login <> ''
		ORDER BY id
	`

	return r.queryRecords(ctx, query, deviceID)
}

// ListDomainRecords returns every credential row for the device with a non-empty resolved domain.
func (r *CorpusRepo) ListDomainRecords(ctx context.Context, deviceID string) ([]model.CredentialRecord, error) {
	const query = `
		SELECT url, domain, login, password, browser, created_at
		FROM credentials
		WHERE device_id = ? AND domain <> ''
		ORDER BY id
	`

	return r.queryRecords(ctx, query, deviceID)
}

// GetDevice returns the metadata recorded for a device. Returns nil, nil if
// the device is unknown.
func (r *CorpusRepo) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	const query = `
		SELECT device_id, machine_name, ip, username, hwid, country, os, log_date
		FROM devices
		WHERE device_id = ?
	`

	var d model.Device
	err := r.db.Reader.QueryRowContext(ctx, query, deviceID).Scan(
		&d.ID, &d.MachineName, &d.IP, &d.Username, &d.HWID, &d.Country, &d.OS, &d.LogDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}

	return &d, nil
}

func (r *CorpusRepo) queryRecords(ctx context.Context, query string, deviceID string) ([]model.CredentialRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query credentials for device %s: %w", deviceID, err)
	}
	defer rows.Close()

	var records []model.CredentialRecord
	for rows.Next() {
		var rec model.CredentialRecord
		var createdAt string
		if err := rows.Scan(&rec.URL, &rec.Domain, &rec.Login, &rec.Password, &rec.Browser, &createdAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		rec.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return records, nil
}
