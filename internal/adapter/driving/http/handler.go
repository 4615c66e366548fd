// Package httphandler implements the REST API driving adapter.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/application"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// maxBodyBytes caps request bodies accepted by the API.
const maxBodyBytes = 1 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	alertSvc    *application.AlertService
	dispatchSvc *application.DispatchService
	registrySvc *application.RegistryService
	alertStore  driven.AlertStore
	pool        *application.TaskPool
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	alertSvc *application.AlertService,
	dispatchSvc *application.DispatchService,
	registrySvc *application.RegistryService,
	alertStore driven.AlertStore,
	pool *application.TaskPool,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		alertSvc:    alertSvc,
		dispatchSvc: dispatchSvc,
		registrySvc: registrySvc,
		alertStore:  alertStore,
		pool:        pool,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metrics may be nil.
func NewServeMux(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/devices/{deviceID}/ingested", h.DeviceIngested)

	mux.HandleFunc("GET /api/v1/watchlists", h.ListWatchlists)
	mux.HandleFunc("POST /api/v1/watchlists", h.CreateWatchlist)
	mux.HandleFunc("GET /api/v1/watchlists/{id}", h.GetWatchlist)
	mux.HandleFunc("DELETE /api/v1/watchlists/{id}", h.DeleteWatchlist)
	mux.HandleFunc("PUT /api/v1/watchlists/{id}/active", h.SetWatchlistActive)
	mux.HandleFunc("PUT /api/v1/watchlists/{id}/webhooks/{webhookID}", h.LinkWebhook)
	mux.HandleFunc("DELETE /api/v1/watchlists/{id}/webhooks/{webhookID}", h.UnlinkWebhook)

	mux.HandleFunc("GET /api/v1/webhooks", h.ListWebhooks)
	mux.HandleFunc("POST /api/v1/webhooks", h.CreateWebhook)
	mux.HandleFunc("PUT /api/v1/webhooks/{id}/active", h.SetWebhookActive)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/test", h.TestWebhook)

	mux.HandleFunc("GET /api/v1/alerts", h.ListAlerts)
	mux.HandleFunc("GET /api/v1/alerts/stats", h.AlertStats)
	mux.HandleFunc("GET /api/v1/alerts/{id}", h.GetAlert)
	mux.HandleFunc("POST /api/v1/alerts/{id}/replay", h.ReplayAlert)

	mux.HandleFunc("GET /api/v1/health", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// DeviceIngested is called by the ingestion pipeline once a device's rows are
// committed. Matching runs before the response; deliveries continue in the
// background. The response is always 202 once the request is well-formed.
func (h *Handler) DeviceIngested(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.PathValue("deviceID"))
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device id is required")
		return
	}

	var req IngestedRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The evaluation must finish even if the pipeline hangs up early.
	h.alertSvc.OnDeviceIngested(context.WithoutCancel(r.Context()), deviceID, req.UploadBatch)

	writeJSON(w, http.StatusAccepted, IngestedResponse{DeviceID: deviceID, UploadBatch: req.UploadBatch})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps domain errors to HTTP status codes. Unknown errors
// are logged and reported as 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, driven.ErrWatchlistNotFound):
		writeError(w, http.StatusNotFound, "watchlist not found")
	case errors.Is(err, driven.ErrWebhookNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
	case errors.Is(err, driven.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, driven.ErrWatchlistAlreadyExists):
		writeError(w, http.StatusConflict, "watchlist already exists")
	case errors.Is(err, application.ErrWebhookInactive):
		writeError(w, http.StatusConflict, "webhook is inactive")
	case errors.Is(err, application.ErrInvalidInput), errors.Is(err, application.ErrInvalidDomain):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeOptionalJSON decodes the body into v, accepting an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
