package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WebhookStore = (*WebhookRepo)(nil)

// WebhookRepo is the SQLite implementation of the WebhookStore port interface.
// Signing secrets are encrypted with AES-256-GCM before write and decrypted
// after read. Custom headers are stored as a JSON object, or NULL when absent.
type WebhookRepo struct {
	db     *DB
	cipher secretCipher
}

// NewWebhookRepo creates a new WebhookRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable secrets (creating or reading a signed webhook then returns
// driven.ErrEncryptionKeyNotSet; unsigned webhooks keep working).
func NewWebhookRepo(db *DB, key []byte) *WebhookRepo {
	return &WebhookRepo{db: db, cipher: secretCipher{key: key}}
}

const webhookColumns = `id, name, url, secret, headers, is_active, last_triggered_at, created_at`

// Create inserts a new webhook and returns it with its assigned ID.
func (r *WebhookRepo) Create(ctx context.Context, w model.Webhook) (model.Webhook, error) {
	const query = `
		INSERT INTO webhooks (name, url, secret, headers, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	sealed, err := r.cipher.seal(w.Secret)
	if err != nil {
		return model.Webhook{}, fmt.Errorf("seal secret for webhook %q: %w", w.Name, err)
	}

	var headers any
	if w.Headers != nil {
		data, err := json.Marshal(w.Headers)
		if err != nil {
			return model.Webhook{}, fmt.Errorf("marshal headers: %w", err)
		}
		headers = string(data)
	}

	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		w.Name, w.URL, sealed, headers, boolToInt(w.IsActive), formatTime(w.CreatedAt),
	)
	if err != nil {
		return model.Webhook{}, fmt.Errorf("create webhook %q: %w", w.Name, err)
	}

	w.ID, err = result.LastInsertId()
	if err != nil {
		return model.Webhook{}, fmt.Errorf("get webhook id: %w", err)
	}

	return w, nil
}

// GetByID retrieves a webhook by ID. Returns nil, nil if it does not exist.
func (r *WebhookRepo) GetByID(ctx context.Context, id int64) (*model.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = ?`

	w, err := r.scanWebhook(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook %d: %w", id, err)
	}

	return w, nil
}

// ListAll returns all webhooks ordered by name.
func (r *WebhookRepo) ListAll(ctx context.Context) ([]model.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY name`
	return r.queryWebhooks(ctx, query)
}

// ListActiveForWatchlist returns the active webhooks linked to the watchlist, ordered by ID.
func (r *WebhookRepo) ListActiveForWatchlist(ctx context.Context, watchlistID int64) ([]model.Webhook, error) {
	const query = `
		SELECT w.id, w.name, w.url, w.secret, w.headers, w.is_active, w.last_triggered_at, w.created_at
		FROM webhooks w
		JOIN watchlist_webhooks ww ON ww.webhook_id = w.id
		WHERE ww.watchlist_id = ? AND w.is_active = 1
		ORDER BY w.id
	`
	return r.queryWebhooks(ctx, query, watchlistID)
}

// SetActive toggles the active flag of a webhook.
func (r *WebhookRepo) SetActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE webhooks SET is_active = ? WHERE id = ?`
	return r.execOne(ctx, "set webhook active", id, query, boolToInt(active), id)
}

// MarkTriggered stamps last_triggered_at after a successful delivery.
func (r *WebhookRepo) MarkTriggered(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE webhooks SET last_triggered_at = ? WHERE id = ?`
	return r.execOne(ctx, "mark webhook triggered", id, query, formatTime(at), id)
}

func (r *WebhookRepo) execOne(ctx context.Context, op string, id int64, query string, args ...any) error {
	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%s %d: %w", op, id, driven.ErrWebhookNotFound)
	}

	return nil
}

func (r *WebhookRepo) queryWebhooks(ctx context.Context, query string, args ...any) ([]model.Webhook, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []model.Webhook
	for rows.Next() {
		w, err := r.scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}

	return webhooks, nil
}

func (r *WebhookRepo) scanWebhook(s scanner) (*model.Webhook, error) {
	var w model.Webhook
	var sealed, createdAt string
	var headers, lastTriggered sql.NullString
	var isActive int

	err := s.Scan(&w.ID, &w.Name, &w.URL, &sealed, &headers, &isActive, &lastTriggered, &createdAt)
	if err != nil {
		return nil, err
	}

	w.Secret, err = r.cipher.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open secret for webhook %d: %w", w.ID, err)
	}

	if headers.Valid {
		if err := json.Unmarshal([]byte(headers.String), &w.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}

	w.IsActive = isActive == 1

	w.LastTriggeredAt, err = parseNullTime(lastTriggered)
	if err != nil {
		return nil, fmt.Errorf("parse last_triggered_at: %w", err)
	}

	w.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &w, nil
}
