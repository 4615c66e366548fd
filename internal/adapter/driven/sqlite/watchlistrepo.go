package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WatchlistStore = (*WatchlistRepo)(nil)

// WatchlistRepo is the SQLite implementation of the WatchlistStore port interface.
// Domains are serialized as a JSON array in a TEXT column.
type WatchlistRepo struct {
	db *DB
}

// NewWatchlistRepo creates a new WatchlistRepo backed by the given DB.
func NewWatchlistRepo(db *DB) *WatchlistRepo {
	return &WatchlistRepo{db: db}
}

const watchlistColumns = `id, name, domains, match_mode, is_active, last_triggered_at, total_alerts, created_at`

// Create inserts a new watchlist and returns it with its assigned ID.
func (r *WatchlistRepo) Create(ctx context.Context, w model.Watchlist) (model.Watchlist, error) {
	const query = `
		INSERT INTO watchlists (name, domains, match_mode, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	domains := w.Domains
	if domains == nil {
		domains = []string{}
	}
	domainsJSON, err := json.Marshal(domains)
	if err != nil {
		return model.Watchlist{}, fmt.Errorf("marshal domains: %w", err)
	}

	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		w.Name, string(domainsJSON), string(w.MatchMode), boolToInt(w.IsActive), formatTime(w.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return model.Watchlist{}, fmt.Errorf("create watchlist %q: %w", w.Name, driven.ErrWatchlistAlreadyExists)
		}
		return model.Watchlist{}, fmt.Errorf("create watchlist %q: %w", w.Name, err)
	}

	w.ID, err = result.LastInsertId()
	if err != nil {
		return model.Watchlist{}, fmt.Errorf("get watchlist id: %w", err)
	}
	w.Domains = domains

	return w, nil
}

// GetByID retrieves a watchlist by ID. Returns nil, nil if it does not exist.
func (r *WatchlistRepo) GetByID(ctx context.Context, id int64) (*model.Watchlist, error) {
	query := `SELECT ` + watchlistColumns + ` FROM watchlists WHERE id = ?`

	w, err := scanWatchlist(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watchlist %d: %w", id, err)
	}

	return w, nil
}

// ListAll returns all watchlists ordered by name.
func (r *WatchlistRepo) ListAll(ctx context.Context) ([]model.Watchlist, error) {
	query := `SELECT ` + watchlistColumns + ` FROM watchlists ORDER BY name`
	return r.queryWatchlists(ctx, query)
}

// ListActive returns the active watchlists ordered by ID. Deactivation takes
// effect on the next call; nothing is cached.
func (r *WatchlistRepo) ListActive(ctx context.Context) ([]model.Watchlist, error) {
	query := `SELECT ` + watchlistColumns + ` FROM watchlists WHERE is_active = 1 ORDER BY id`
	return r.queryWatchlists(ctx, query)
}

// SetActive toggles the active flag of a watchlist.
func (r *WatchlistRepo) SetActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE watchlists SET is_active = ? WHERE id = ?`
	return r.execOne(ctx, "set watchlist active", id, query, boolToInt(active), id)
}

// Delete removes a watchlist and its webhook links. Its alerts are kept.
func (r *WatchlistRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM watchlists WHERE id = ?`
	return r.execOne(ctx, "delete watchlist", id, query, id)
}

// AttachWebhook links a webhook to a watchlist. Linking twice is a no-op.
func (r *WatchlistRepo) AttachWebhook(ctx context.Context, watchlistID, webhookID int64) error {
	const query = `INSERT OR IGNORE INTO watchlist_webhooks (watchlist_id, webhook_id) VALUES (?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query, watchlistID, webhookID)
	if err != nil {
		return fmt.Errorf("attach webhook %d to watchlist %d: %w", webhookID, watchlistID, err)
	}

	return nil
}

// DetachWebhook removes the link between a webhook and a watchlist.
func (r *WatchlistRepo) DetachWebhook(ctx context.Context, watchlistID, webhookID int64) error {
	const query = `DELETE FROM watchlist_webhooks WHERE watchlist_id = ? AND webhook_id = ?`

	_, err := r.db.Writer.ExecContext(ctx, query, watchlistID, webhookID)
	if err != nil {
		return fmt.Errorf("detach webhook %d from watchlist %d: %w", webhookID, watchlistID, err)
	}

	return nil
}

// RecordAlerts adds n to total_alerts and stamps last_triggered_at in a single
// statement, so concurrent evaluations never lose increments.
func (r *WatchlistRepo) RecordAlerts(ctx context.Context, id int64, n int, at time.Time) error {
	const query = `
		UPDATE watchlists
		SET total_alerts = total_alerts + ?, last_triggered_at = ?
		WHERE id = ?
	`
	return r.execOne(ctx, "record watchlist alerts", id, query, n, formatTime(at), id)
}

// MarkTriggered stamps last_triggered_at.
func (r *WatchlistRepo) MarkTriggered(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE watchlists SET last_triggered_at = ? WHERE id = ?`
	return r.execOne(ctx, "mark watchlist triggered", id, query, formatTime(at), id)
}

func (r *WatchlistRepo) execOne(ctx context.Context, op string, id int64, query string, args ...any) error {
	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%s %d: %w", op, id, driven.ErrWatchlistNotFound)
	}

	return nil
}

func (r *WatchlistRepo) queryWatchlists(ctx context.Context, query string, args ...any) ([]model.Watchlist, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query watchlists: %w", err)
	}
	defer rows.Close()

	var watchlists []model.Watchlist
	for rows.Next() {
		w, err := scanWatchlist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		watchlists = append(watchlists, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlists: %w", err)
	}

	return watchlists, nil
}

func scanWatchlist(s scanner) (*model.Watchlist, error) {
	var w model.Watchlist
	var domainsJSON, matchMode, createdAt string
	var isActive int
	var lastTriggered sql.NullString

	err := s.Scan(&w.ID, &w.Name, &domainsJSON, &matchMode, &isActive, &lastTriggered, &w.TotalAlerts, &createdAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(domainsJSON), &w.Domains); err != nil {
		return nil, fmt.Errorf("unmarshal domains: %w", err)
	}

	w.MatchMode = model.MatchMode(matchMode)
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
