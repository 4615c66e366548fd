package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// ErrInvalidInput is returned for malformed registry input.
var ErrInvalidInput = errors.New("invalid input")

// RegistryService manages watchlists, webhooks and the links between them.
// The engine never caches registry state, so every change applies to the next
// evaluation.
type RegistryService struct {
	watchlists driven.WatchlistStore
	webhooks   driven.WebhookStore
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(watchlists driven.WatchlistStore, webhooks driven.WebhookStore) *RegistryService {
	return &RegistryService{watchlists: watchlists, webhooks: webhooks}
}

// CreateWatchlist validates and stores a new active watchlist. Domains are
// normalized and deduplicated; an empty mode defaults to both.
func (s *RegistryService) CreateWatchlist(ctx context.Context, name string, domains []string, mode model.MatchMode) (model.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Watchlist{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if mode == "" {
		mode = model.MatchModeBoth
	}
	if !mode.Valid() {
		return model.Watchlist{}, fmt.Errorf("%w: match mode %q", ErrInvalidInput, mode)
	}

	normalized, err := NormalizeDomains(domains)
	if err != nil {
		return model.Watchlist{}, err
	}

	return s.watchlists.Create(ctx, model.Watchlist{
		Name:      name,
		Domains:   normalized,
		MatchMode: mode,
		IsActive:  true,
	})
}

// GetWatchlist returns a watchlist or driven.ErrWatchlistNotFound.
func (s *RegistryService) GetWatchlist(ctx context.Context, id int64) (*model.Watchlist, error) {
	w, err := s.watchlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("watchlist %d: %w", id, driven.ErrWatchlistNotFound)
	}
	return w, nil
}

// ListWatchlists returns all watchlists.
func (s *RegistryService) ListWatchlists(ctx context.Context) ([]model.Watchlist, error) {
	return s.watchlists.ListAll(ctx)
}

// SetWatchlistActive enables or disables a watchlist.
func (s *RegistryService) SetWatchlistActive(ctx context.Context, id int64, active bool) error {
	return s.watchlists.SetActive(ctx, id, active)
}

// DeleteWatchlist removes a watchlist and its links. Alert history is kept.
func (s *RegistryService) DeleteWatchlist(ctx context.Context, id int64) error {
	return s.watchlists.Delete(ctx, id)
}

// LinkWebhook subscribes a webhook to a watchlist's alerts.
func (s *RegistryService) LinkWebhook(ctx context.Context, watchlistID, webhookID int64) error {
	if _, err := s.GetWatchlist(ctx, watchlistID); err != nil {
		return err
	}
	if _, err := s.GetWebhook(ctx, webhookID); err != nil {
		return err
	}
	return s.watchlists.AttachWebhook(ctx, watchlistID, webhookID)
}

// UnlinkWebhook removes a webhook subscription. Unlinking a pair that is not
// linked is a no-op.
func (s *RegistryService) UnlinkWebhook(ctx context.Context, watchlistID, webhookID int64) error {
	return s.watchlists.DetachWebhook(ctx, watchlistID, webhookID)
}

// CreateWebhook validates and stores a new active webhook. A nil headers map
// means no custom headers.
func (s *RegistryService) CreateWebhook(ctx context.Context, name, rawURL, secret string, headers map[string]string) (model.Webhook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Webhook{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.Webhook{}, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidInput)
	}

	for k := range headers {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, " :\r\n") {
			return model.Webhook{}, fmt.Errorf("%w: header name %q", ErrInvalidInput, k)
		}
	}

	return s.webhooks.Create(ctx, model.Webhook{
		Name:     name,
		URL:      u.String(),
		Secret:   secret,
		Headers:  headers,
		IsActive: true,
	})
}

// GetWebhook returns a webhook or driven.ErrWebhookNotFound.
func (s *RegistryService) GetWebhook(ctx context.Context, id int64) (*model.Webhook, error) {
	w, err := s.webhooks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("webhook %d: %w", id, driven.ErrWebhookNotFound)
	}
	return w, nil
}

// ListWebhooks returns all webhooks.
func (s *RegistryService) ListWebhooks(ctx context.Context) ([]model.Webhook, error) {
	return s.webhooks.ListAll(ctx)
}

// SetWebhookActive enables or disables a webhook.
func (s *RegistryService) SetWebhookActive(ctx context.Context, id int64, active bool) error {
	return s.webhooks.SetActive(ctx, id, active)
}
