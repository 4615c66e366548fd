package httphandler

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// IngestedRequest is the optional body of the device-ingested trigger.
type IngestedRequest struct {
	UploadBatch string `json:"upload_batch"`
}

// IngestedResponse acknowledges a device-ingested trigger.
type IngestedResponse struct {
	DeviceID    string `json:"device_id"`
	UploadBatch string `json:"upload_batch,omitempty"`
}

// CreateWatchlistRequest is the JSON body for POST /api/v1/watchlists.
type CreateWatchlistRequest struct {
	Name      string   `json:"name"`
	Domains   []string `json:"domains"`
	MatchMode string   `json:"match_mode"`
}

// CreateWebhookRequest is the JSON body for POST /api/v1/webhooks.
type CreateWebhookRequest struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Secret  string            `json:"secret"`
	Headers map[string]string `json:"headers"`
}

// SetActiveRequest is the JSON body for the PUT .../active endpoints.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// WatchlistResponse is the JSON representation of a watchlist.
type WatchlistResponse struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Domains         []string `json:"domains"`
	MatchMode       string   `json:"match_mode"`
	IsActive        bool     `json:"is_active"`
	LastTriggeredAt *string  `json:"last_triggered_at"`
	TotalAlerts     int64    `json:"total_alerts"`
	CreatedAt       string   `json:"created_at"`
}

// WebhookResponse is the JSON representation of a webhook. The secret and
// header values are never returned.
type WebhookResponse struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	HasSecret       bool     `json:"has_secret"`
	HeaderNames     []string `json:"header_names"`
	IsActive        bool     `json:"is_active"`
	LastTriggeredAt *string  `json:"last_triggered_at"`
	CreatedAt       string   `json:"created_at"`
}

// AlertResponse is the JSON representation of an alert row. Payload is only
// populated on the detail endpoint.
type AlertResponse struct {
	ID                   int64           `json:"id"`
	WatchlistID          int64           `json:"watchlist_id"`
	WebhookID            int64           `json:"webhook_id"`
	DeviceID             string          `json:"device_id"`
	UploadBatch          string          `json:"upload_batch"`
	MatchedDomains       string          `json:"matched_domains"`
	MatchType            string          `json:"match_type"`
	CredentialMatchCount int             `json:"credential_match_count"`
	URLMatchCount        int             `json:"url_match_count"`
	Status               string          `json:"status"`
	HTTPStatus           *int            `json:"http_status"`
	ErrorMessage         *string         `json:"error_message"`
	RetryCount           int             `json:"retry_count"`
	DeliveryID           string          `json:"delivery_id"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
	Payload              json.RawMessage `json:"payload,omitempty"`
}

// AlertListResponse is one page of the alert log.
type AlertListResponse struct {
	Alerts  []AlertResponse `json:"alerts"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// AlertStatsResponse holds aggregate alert counts.
type AlertStatsResponse struct {
	Total    int `json:"total"`
	Today    int `json:"today"`
	Success  int `json:"success"`
	Failed   int `json:"failed"`
	Retrying int `json:"retrying"`
}

// DeliveryResponse reports the outcome of a synchronous send.
type DeliveryResponse struct {
	DeliveryID   string `json:"delivery_id"`
	AlertID      int64  `json:"alert_id,omitempty"`
	Status       string `json:"status"`
	HTTPStatus   int    `json:"http_status,omitempty"`
	Attempts     int    `json:"attempts"`
	ResponseBody string `json:"response_body,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// ReplayResponse acknowledges a replay that was queued for delivery.
type ReplayResponse struct {
	AlertID    int64  `json:"alert_id"`
	DeliveryID string `json:"delivery_id"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toWatchlistResponse(wl model.Watchlist) WatchlistResponse {
	domains := wl.Domains
	if domains == nil {
		domains = []string{}
	}
	return WatchlistResponse{
		ID:              wl.ID,
		Name:            wl.Name,
		Domains:         domains,
		MatchMode:       string(wl.MatchMode),
		IsActive:        wl.IsActive,
		LastTriggeredAt: formatTimePtr(wl.LastTriggeredAt),
		TotalAlerts:     wl.TotalAlerts,
		CreatedAt:       formatTime(wl.CreatedAt),
	}
}

func toWebhookResponse(wh model.Webhook) WebhookResponse {
	names := make([]string, 0, len(wh.Headers))
	for k := range wh.Headers {
		names = append(names, k)
	}
	slices.Sort(names)

	return WebhookResponse{
		ID:              wh.ID,
		Name:            wh.Name,
		URL:             wh.URL,
		HasSecret:       wh.HasSecret(),
		HeaderNames:     names,
		IsActive:        wh.IsActive,
		LastTriggeredAt: formatTimePtr(wh.LastTriggeredAt),
		CreatedAt:       formatTime(wh.CreatedAt),
	}
}

func toAlertResponse(a model.Alert, withPayload bool) AlertResponse {
	resp := AlertResponse{
		ID:                   a.ID,
		WatchlistID:          a.WatchlistID,
		WebhookID:            a.WebhookID,
		DeviceID:             a.DeviceID,
		UploadBatch:          a.UploadBatch,
		MatchedDomains:       a.MatchedDomains,
		MatchType:            string(a.MatchType),
		CredentialMatchCount: a.CredentialMatchCount,
		URLMatchCount:        a.URLMatchCount,
		Status:               string(a.Status),
		HTTPStatus:           a.HTTPStatus,
		ErrorMessage:         a.ErrorMessage,
		RetryCount:           a.RetryCount,
		DeliveryID:           a.DeliveryID,
		CreatedAt:            formatTime(a.CreatedAt),
		UpdatedAt:            formatTime(a.UpdatedAt),
	}
	if withPayload && json.Valid([]byte(a.Payload)) {
		resp.Payload = json.RawMessage(a.Payload)
	}
	return resp
}

func toDeliveryResponse(out model.DeliveryOutcome) DeliveryResponse {
	return DeliveryResponse{
		DeliveryID:   out.DeliveryID,
		AlertID:      out.AlertID,
		Status:       string(out.Status),
		HTTPStatus:   out.HTTPStatus,
		Attempts:     out.Attempts,
		ResponseBody: out.ResponseBody,
		Error:        out.Error,
		DurationMS:   out.Duration.Milliseconds(),
	}
}
