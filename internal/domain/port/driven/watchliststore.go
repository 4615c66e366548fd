package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// Sentinel errors returned by WatchlistStore implementations.
var (
	// ErrWatchlistNotFound indicates the requested watchlist does not exist.
	ErrWatchlistNotFound = errors.New("watchlist not found")

	// ErrWatchlistAlreadyExists indicates a watchlist with the same name already exists.
	ErrWatchlistAlreadyExists = errors.New("watchlist already exists")
)

// WatchlistStore defines the driven port for watchlist persistence.
// Callers are expected to pass already-normalized domains.
type WatchlistStore interface {
	Create(ctx context.Context, w model.Watchlist) (model.Watchlist, error)
	// GetByID returns (nil, nil) if the watchlist does not exist.
	GetByID(ctx context.Context, id int64) (*model.Watchlist, error)
	ListAll(ctx context.Context) ([]model.Watchlist, error)
	ListActive(ctx context.Context) ([]model.Watchlist, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error

	AttachWebhook(ctx context.Context, watchlistID, webhookID int64) error
	DetachWebhook(ctx context.Context, watchlistID, webhookID int64) error

	// RecordAlerts atomically adds n to total_alerts and sets last_triggered_at.
	RecordAlerts(ctx context.Context, id int64, n int, at time.Time) error
	// MarkTriggered sets last_triggered_at without touching total_alerts.
	MarkTriggered(ctx context.Context, id int64, at time.Time) error
}
