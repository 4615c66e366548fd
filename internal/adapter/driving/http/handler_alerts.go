package httphandler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// ListAlerts returns one page of the alert log, newest first.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, total, err := h.alertStore.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "list alerts", err)
		return
	}

	resp := AlertListResponse{
		Alerts:  make([]AlertResponse, 0, len(alerts)),
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, toAlertResponse(a, false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAlert returns a single alert including its payload snapshot.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	a, err := h.alertStore.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get alert", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, toAlertResponse(*a, true))
}

// AlertStats returns aggregate alert counts.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.alertStore.Stats(r.Context(), time.Now())
	if err != nil {
		h.writeServiceError(w, "alert stats", err)
		return
	}
	writeJSON(w, http.StatusOK, AlertStatsResponse{
		Total:    st.Total,
		Today:    st.Today,
		Success:  st.Success,
		Failed:   st.Failed,
		Retrying: st.Retrying,
	})
}

// ReplayAlert queues a new delivery of a stored alert's payload to the same
// webhook. The original alert row is left untouched.
func (h *Handler) ReplayAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	d, err := h.dispatchSvc.PrepareReplay(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "replay alert", err)
		return
	}

	queued := h.pool.Go("replay "+d.DeliveryID, func(ctx context.Context) {
		h.dispatchSvc.Deliver(ctx, d)
	})
	if !queued {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	writeJSON(w, http.StatusAccepted, ReplayResponse{AlertID: id, DeliveryID: d.DeliveryID})
}

func parseAlertFilter(r *http.Request) (model.AlertFilter, error) {
	q := r.URL.Query()
	f := model.AlertFilter{
		DeviceID: q.Get("device_id"),
		Status:   model.AlertStatus(q.Get("status")),
		Page:     1,
		PerPage:  defaultPerPage,
	}

	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("invalid status %q", f.Status)
	}

	var err error
	if f.WatchlistID, err = queryInt64(q.Get("watchlist_id"), "watchlist_id"); err != nil {
		return f, err
	}
	if f.WebhookID, err = queryInt64(q.Get("webhook_id"), "webhook_id"); err != nil {
		return f, err
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, fmt.Errorf("invalid page %q", v)
		}
		f.Page = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, fmt.Errorf("invalid per_page %q", v)
		}
		f.PerPage = min(n, maxPerPage)
	}

	return f, nil
}

func queryInt64(v, name string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}
