// Package application contains the watchlist matching, alert dispatch and
// registry use cases.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// AlertService is the entry point the ingestion pipeline calls after it has
// committed a device's rows. It matches, fans out deliveries to the task pool
// and returns without waiting for them.
type AlertService struct {
	watchlists driven.WatchlistStore
	webhooks   driven.WebhookStore
	corpus     driven.CorpusReader
	matcher    *Matcher
	dispatch   *DispatchService
	pool       *TaskPool
	metrics    driven.AlertMetrics
	now        func() time.Time
}

// NewAlertService creates a new AlertService with all required dependencies.
func NewAlertService(
	watchlists driven.WatchlistStore,
	webhooks driven.WebhookStore,
	corpus driven.CorpusReader,
	dispatch *DispatchService,
	pool *TaskPool,
	metrics driven.AlertMetrics,
) *AlertService {
	return &AlertService{
		watchlists: watchlists,
		webhooks:   webhooks,
		corpus:     corpus,
		matcher:    NewMatcher(corpus),
		dispatch:   dispatch,
		pool:       pool,
		metrics:    metrics,
		now:        time.Now,
	}
}

// OnDeviceIngested evaluates the device against every active watchlist.
// Failures are logged and never returned; deliveries continue in the
// background after it returns.
func (s *AlertService) OnDeviceIngested(ctx context.Context, deviceID, uploadBatch string) {
	start := time.Now()

	matched, err := s.evaluate(ctx, deviceID, uploadBatch)
	if err != nil {
		slog.Error("watchlist evaluation abandoned", "device_id", deviceID, "upload_batch", uploadBatch, "error", err)
	}

	s.metrics.ObserveEvaluation(matched, time.Since(start))
}

// evaluate returns the number of watchlists that matched.
func (s *AlertService) evaluate(ctx context.Context, deviceID, uploadBatch string) (int, error) {
	active, err := s.watchlists.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active watchlists: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	results, err := s.matcher.Match(ctx, deviceID, active)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}

	device, err := s.corpus.GetDevice(ctx, deviceID)
	if err != nil {
		return 0, fmt.Errorf("load device metadata: %w", err)
	}

	now := s.now().UTC()

	for _, wl := range active {
		res, ok := results[wl.ID]
		if !ok {
			continue
		}

		sent := s.fanOut(ctx, wl, res, deviceID, device, uploadBatch, now)
		if sent == 0 {
			continue
		}

		if err := s.watchlists.RecordAlerts(ctx, wl.ID, sent, now); err != nil {
			slog.Error("failed to record watchlist alerts", "watchlist_id", wl.ID, "error", err)
		}
	}

	return len(results), nil
}

// fanOut schedules one delivery per active webhook of wl and returns how many
// were scheduled.
func (s *AlertService) fanOut(
	ctx context.Context,
	wl model.Watchlist,
	res model.MatchResult,
	deviceID string,
	device *model.Device,
	uploadBatch string,
	now time.Time,
) int {
	hooks, err := s.webhooks.ListActiveForWatchlist(ctx, wl.ID)
	if err != nil {
		slog.Error("failed to list webhooks", "watchlist_id", wl.ID, "error", err)
		return 0
	}
	if len(hooks) == 0 {
		slog.Warn("watchlist matched but has no active webhooks", "watchlist_id", wl.ID, "watchlist", wl.Name, "device_id", deviceID)
		return 0
	}

	body, err := MarshalPayload(BuildPayload(wl, res, deviceID, device, uploadBatch, now))
	if err != nil {
		slog.Error("failed to build alert payload", "watchlist_id", wl.ID, "error", err)
		return 0
	}

	slog.Info("watchlist matched",
		"watchlist_id", wl.ID,
		"device_id", deviceID,
		"credential_matches", len(res.CredentialMatches),
		"url_matches", len(res.URLMatches),
		"webhooks", len(hooks),
	)

	sent := 0
	for _, wh := range hooks {
		d := Delivery{
			Event:                model.AlertEvent,
			WatchlistID:          wl.ID,
			Webhook:              wh,
			DeviceID:             deviceID,
			UploadBatch:          uploadBatch,
			MatchedDomains:       strings.Join(res.MatchedDomains, ", "),
			MatchType:            res.Type(),
			CredentialMatchCount: len(res.CredentialMatches),
			URLMatchCount:        len(res.URLMatches),
			Body:                 body,
		}

		name := fmt.Sprintf("deliver watchlist=%d webhook=%d", wl.ID, wh.ID)
		if s.pool.Go(name, func(ctx context.Context) { s.dispatch.Deliver(ctx, d) }) {
			sent++
		}
	}

	return sent
}
