package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// ErrWebhookNotFound indicates the requested webhook does not exist.
var ErrWebhookNotFound = errors.New("webhook not found")

// ErrEncryptionKeyNotSet is returned when a webhook secret must be stored or
// read but LEAKWATCH_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set LEAKWATCH_SECRET_KEY")

// WebhookStore defines the driven port for webhook persistence. The adapter
// encrypts secrets at rest; this interface operates on plaintext secrets.
type WebhookStore interface {
	Create(ctx context.Context, w model.Webhook) (model.Webhook, error)
	// GetByID returns (nil, nil) if the webhook does not exist.
	GetByID(ctx context.Context, id int64) (*model.Webhook, error)
	ListAll(ctx context.Context) ([]model.Webhook, error)
	// ListActiveForWatchlist returns the active webhooks linked to the watchlist.
	ListActiveForWatchlist(ctx context.Context, watchlistID int64) ([]model.Webhook, error)
	SetActive(ctx context.Context, id int64, active bool) error
	MarkTriggered(ctx context.Context, id int64, at time.Time) error
}
