package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// ErrWebhookInactive is returned when an operator asks to send to a disabled webhook.
var ErrWebhookInactive = errors.New("webhook is inactive")

// DispatchConfig controls outbound webhook calls.
type DispatchConfig struct {
	Timeout     time.Duration // Per-attempt timeout for alert deliveries.
	TestTimeout time.Duration // Timeout for test sends, which are never retried.
	MaxRetries  int
	UserAgent   string
}

// Delivery is one notification of one webhook about one watchlist match.
// Body is the serialized payload; it is signed, sent and stored as-is.
type Delivery struct {
	DeliveryID           string // Generated when empty.
	Event                string
	WatchlistID          int64
	Webhook              model.Webhook
	DeviceID             string
	UploadBatch          string
	MatchedDomains       string
	MatchType            model.MatchType
	CredentialMatchCount int
	URLMatchCount        int
	Body                 []byte
}

// DispatchService sends webhook deliveries and records their outcome.
type DispatchService struct {
	sender     driven.WebhookSender
	alerts     driven.AlertStore
	webhooks   driven.WebhookStore
	watchlists driven.WatchlistStore
	metrics    driven.AlertMetrics
	cfg        DispatchConfig
	now        func() time.Time
}

// NewDispatchService creates a new DispatchService with all required dependencies.
func NewDispatchService(
	sender driven.WebhookSender,
	alerts driven.AlertStore,
	webhooks driven.WebhookStore,
	watchlists driven.WatchlistStore,
	metrics driven.AlertMetrics,
	cfg DispatchConfig,
) *DispatchService {
	return &DispatchService{
		sender:     sender,
		alerts:     alerts,
		webhooks:   webhooks,
		watchlists: watchlists,
		metrics:    metrics,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Deliver sends d with retries and keeps exactly one alert row for it. The
// row is created when the first retry is scheduled (status retrying) or, for
// single-attempt deliveries, once the outcome is known. Storage failures are
// logged and never cause a re-send.
func (s *DispatchService) Deliver(ctx context.Context, d Delivery) model.DeliveryOutcome {
	if d.DeliveryID == "" {
		d.DeliveryID = uuid.NewString()
	}
	if d.Event == "" {
		d.Event = model.AlertEvent
	}

	// Audit writes must land even when the pool is being shut down.
	storeCtx := context.WithoutCancel(ctx)
	log := slog.With("delivery_id", d.DeliveryID, "watchlist_id", d.WatchlistID, "webhook_id", d.Webhook.ID)

	alert := model.Alert{
		WatchlistID:          d.WatchlistID,
		WebhookID:            d.Webhook.ID,
		DeviceID:             d.DeviceID,
		UploadBatch:          d.UploadBatch,
		MatchedDomains:       d.MatchedDomains,
		MatchType:            d.MatchType,
		CredentialMatchCount: d.CredentialMatchCount,
		URLMatchCount:        d.URLMatchCount,
		Payload:              string(d.Body),
		DeliveryID:           d.DeliveryID,
	}

	observe := func(retry, statusCode int, err error) {
		alert.Status = model.AlertStatusRetrying
		alert.RetryCount = retry
		alert.HTTPStatus, alert.ErrorMessage = attemptDetails(statusCode, "", err)
		log.Warn("webhook delivery retrying", "retry", retry, "status", statusCode, "error", err)
		s.saveAlert(storeCtx, &alert)
	}

	s.metrics.IncInflight()
	defer s.metrics.DecInflight()

	resp, sendErr := s.sender.Send(ctx, driven.WebhookRequest{
		URL:        d.Webhook.URL,
		Headers:    s.headers(d.Webhook, d.Event, d.DeliveryID, d.Body, false),
		Body:       d.Body,
		Timeout:    s.cfg.Timeout,
		MaxRetries: s.cfg.MaxRetries,
	}, observe)

	alert.Status = model.AlertStatusFailed
	if sendErr == nil && isSuccess(resp.StatusCode) {
		alert.Status = model.AlertStatusSuccess
	}
	alert.RetryCount = max(resp.Attempts-1, 0)
	alert.HTTPStatus, alert.ErrorMessage = attemptDetails(resp.StatusCode, resp.Body, sendErr)
	s.saveAlert(storeCtx, &alert)

	if alert.Status == model.AlertStatusSuccess {
		at := s.now().UTC()
		if err := s.webhooks.MarkTriggered(storeCtx, d.Webhook.ID, at); err != nil {
			log.Error("failed to mark webhook triggered", "error", err)
		}
		if err := s.watchlists.MarkTriggered(storeCtx, d.WatchlistID, at); err != nil {
			log.Error("failed to mark watchlist triggered", "error", err)
		}
		log.Info("webhook delivered", "status", resp.StatusCode, "attempts", resp.Attempts)
	} else {
		log.Warn("webhook delivery failed", "status", resp.StatusCode, "attempts", resp.Attempts, "error", sendErr)
	}

	s.metrics.ObserveDelivery(string(alert.Status), resp.Attempts, resp.Duration)

	out := model.DeliveryOutcome{
		DeliveryID:   d.DeliveryID,
		AlertID:      alert.ID,
		Status:       alert.Status,
		HTTPStatus:   resp.StatusCode,
		Attempts:     resp.Attempts,
		ResponseBody: resp.Body,
		Duration:     resp.Duration,
	}
	if alert.ErrorMessage != nil {
		out.Error = *alert.ErrorMessage
	}
	return out
}

// SendTest posts a sample document to a webhook once, with the shorter test
// timeout and an X-Webhook-Test header. Nothing is recorded.
func (s *DispatchService) SendTest(ctx context.Context, webhookID int64) (model.DeliveryOutcome, error) {
	wh, err := s.webhooks.GetByID(ctx, webhookID)
	if err != nil {
		return model.DeliveryOutcome{}, fmt.Errorf("load webhook %d: %w", webhookID, err)
	}
	if wh == nil {
		return model.DeliveryOutcome{}, fmt.Errorf("webhook %d: %w", webhookID, driven.ErrWebhookNotFound)
	}

	body, err := jsonBody(model.TestPayload{
		Event:       model.TestEvent,
		WebhookID:   wh.ID,
		WebhookName: wh.Name,
		Message:     "This is a test delivery from leakwatch.",
		TriggeredAt: s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.DeliveryOutcome{}, err
	}

	deliveryID := uuid.NewString()
	resp, sendErr := s.sender.Send(ctx, driven.WebhookRequest{
		URL:     wh.URL,
		Headers: s.headers(*wh, model.TestEvent, deliveryID, body, true),
		Body:    body,
		Timeout: s.cfg.TestTimeout,
	}, nil)

	out := model.DeliveryOutcome{
		DeliveryID:   deliveryID,
		Status:       model.AlertStatusFailed,
		HTTPStatus:   resp.StatusCode,
		Attempts:     resp.Attempts,
		ResponseBody: resp.Body,
		Duration:     resp.Duration,
	}
	switch {
	case sendErr != nil:
		out.Error = sendErr.Error()
	case isSuccess(resp.StatusCode):
		out.Status = model.AlertStatusSuccess
	default:
		out.Error = statusError(resp.StatusCode, resp.Body)
	}

	slog.Info("webhook test sent", "webhook_id", wh.ID, "status", resp.StatusCode, "success", out.Status == model.AlertStatusSuccess)

	return out, nil
}

// PrepareReplay builds a new delivery that re-sends a stored alert's payload
// snapshot to the alert's webhook, using the webhook's current URL, headers
// and secret.
func (s *DispatchService) PrepareReplay(ctx context.Context, alertID int64) (Delivery, error) {
	a, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		return Delivery{}, fmt.Errorf("load alert %d: %w", alertID, err)
	}
	if a == nil {
		return Delivery{}, fmt.Errorf("alert %d: %w", alertID, driven.ErrAlertNotFound)
	}

	wh, err := s.webhooks.GetByID(ctx, a.WebhookID)
	if err != nil {
		return Delivery{}, fmt.Errorf("load webhook %d: %w", a.WebhookID, err)
	}
	if wh == nil {
		return Delivery{}, fmt.Errorf("webhook %d: %w", a.WebhookID, driven.ErrWebhookNotFound)
	}
	if !wh.IsActive {
		return Delivery{}, fmt.Errorf("webhook %d: %w", wh.ID, ErrWebhookInactive)
	}

	event := gjson.Get(a.Payload, "event").String()
	if event == "" {
		event = model.AlertEvent
	}

	return Delivery{
		DeliveryID:           uuid.NewString(),
		Event:                event,
		WatchlistID:          a.WatchlistID,
		Webhook:              *wh,
		DeviceID:             a.DeviceID,
		UploadBatch:          a.UploadBatch,
		MatchedDomains:       a.MatchedDomains,
		MatchType:            a.MatchType,
		CredentialMatchCount: a.CredentialMatchCount,
		URLMatchCount:        a.URLMatchCount,
		Body:                 []byte(a.Payload),
	}, nil
}

// Replay re-sends a stored alert and waits for the outcome.
func (s *DispatchService) Replay(ctx context.Context, alertID int64) (model.DeliveryOutcome, error) {
	d, err := s.PrepareReplay(ctx, alertID)
	if err != nil {
		return model.DeliveryOutcome{}, err
	}
	return s.Deliver(ctx, d), nil
}

// headers builds the request headers. Webhook headers override the defaults;
// the signature is applied last so it cannot be overridden.
func (s *DispatchService) headers(wh model.Webhook, event, deliveryID string, body []byte, test bool) map[string]string {
	h := map[string]string{
		"Content-Type":       "application/json",
		"User-Agent":         s.cfg.UserAgent,
		"X-Webhook-Event":    event,
		"X-Webhook-Delivery": deliveryID,
	}
	for k, v := range wh.Headers {
		h[http.CanonicalHeaderKey(k)] = v
	}
	if test {
		h["X-Webhook-Test"] = "true"
	}
	if wh.HasSecret() {
		h["X-Webhook-Signature"] = Sign(body, wh.Secret)
	} else {
		delete(h, "X-Webhook-Signature")
	}
	return h
}

// saveAlert creates the alert row on first call and updates it afterwards.
func (s *DispatchService) saveAlert(ctx context.Context, a *model.Alert) {
	now := s.now().UTC()
	a.UpdatedAt = now

	if a.ID == 0 {
		a.CreatedAt = now
		id, err := s.alerts.Create(ctx, *a)
		if err != nil {
			slog.Error("failed to record alert", "delivery_id", a.DeliveryID, "status", a.Status, "error", err)
			return
		}
		a.ID = id
		return
	}

	if err := s.alerts.Update(ctx, *a); err != nil {
		slog.Error("failed to update alert", "alert_id", a.ID, "status", a.Status, "error", err)
	}
}

// Sign returns the X-Webhook-Signature value for body: "sha256=" followed by
// the hex HMAC-SHA256 of body keyed with secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// attemptDetails converts an attempt outcome to the nullable alert columns.
func attemptDetails(statusCode int, body string, err error) (*int, *string) {
	var status *int
	if statusCode > 0 {
		status = &statusCode
	}

	var msg string
	switch {
	case err != nil:
		msg = err.Error()
	case statusCode > 0 && !isSuccess(statusCode):
		msg = statusError(statusCode, body)
	default:
		return status, nil
	}
	return status, &msg
}

func statusError(code int, body string) string {
	if body != "" {
		return body
	}
	return fmt.Sprintf("HTTP %d %s", code, http.StatusText(code))
}
