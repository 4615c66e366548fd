package httphandler

import (
	"net/http"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// ListWatchlists returns every watchlist, active or not.
func (h *Handler) ListWatchlists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.registrySvc.ListWatchlists(r.Context())
	if err != nil {
		h.writeServiceError(w, "list watchlists", err)
		return
	}

	resp := make([]WatchlistResponse, 0, len(lists))
	for _, wl := range lists {
		resp = append(resp, toWatchlistResponse(wl))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateWatchlist creates a watchlist from a name, domains and match mode.
func (h *Handler) CreateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req CreateWatchlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wl, err := h.registrySvc.CreateWatchlist(r.Context(), req.Name, req.Domains, model.MatchMode(req.MatchMode))
	if err != nil {
		h.writeServiceError(w, "create watchlist", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWatchlistResponse(wl))
}

// GetWatchlist returns a single watchlist.
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watchlist id")
		return
	}

	wl, err := h.registrySvc.GetWatchlist(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get watchlist", err)
		return
	}
	writeJSON(w, http.StatusOK, toWatchlistResponse(*wl))
}

// DeleteWatchlist removes a watchlist and its webhook links.
func (h *Handler) DeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watchlist id")
		return
	}

	if err := h.registrySvc.DeleteWatchlist(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete watchlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetWatchlistActive enables or disables a watchlist.
func (h *Handler) SetWatchlistActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watchlist id")
		return
	}
	active, ok := decodeActive(w, r)
	if !ok {
		return
	}

	if err := h.registrySvc.SetWatchlistActive(r.Context(), id, active); err != nil {
		h.writeServiceError(w, "set watchlist active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkWebhook attaches a webhook to a watchlist. Linking twice is a no-op.
func (h *Handler) LinkWebhook(w http.ResponseWriter, r *http.Request) {
	wlID, whID, ok := linkIDs(w, r)
	if !ok {
		return
	}

	if err := h.registrySvc.LinkWebhook(r.Context(), wlID, whID); err != nil {
		h.writeServiceError(w, "link webhook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkWebhook detaches a webhook from a watchlist.
func (h *Handler) UnlinkWebhook(w http.ResponseWriter, r *http.Request) {
	wlID, whID, ok := linkIDs(w, r)
	if !ok {
		return
	}

	if err := h.registrySvc.UnlinkWebhook(r.Context(), wlID, whID); err != nil {
		h.writeServiceError(w, "unlink webhook", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWebhooks returns every webhook without secrets.
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.registrySvc.ListWebhooks(r.Context())
	if err != nil {
		h.writeServiceError(w, "list webhooks", err)
		return
	}

	resp := make([]WebhookResponse, 0, len(hooks))
	for _, wh := range hooks {
		resp = append(resp, toWebhookResponse(wh))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateWebhook registers a webhook target.
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wh, err := h.registrySvc.CreateWebhook(r.Context(), req.Name, req.URL, req.Secret, req.Headers)
	if err != nil {
		h.writeServiceError(w, "create webhook", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWebhookResponse(wh))
}

// SetWebhookActive enables or disables a webhook.
func (h *Handler) SetWebhookActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}
	active, ok := decodeActive(w, r)
	if !ok {
		return
	}

	if err := h.registrySvc.SetWebhookActive(r.Context(), id, active); err != nil {
		h.writeServiceError(w, "set webhook active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestWebhook sends a test event and reports the outcome synchronously. A
// failed delivery is still a 200; the outcome carries the failure.
func (h *Handler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	out, err := h.dispatchSvc.SendTest(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "test webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryResponse(out))
}

func decodeActive(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, `request body must be {"active": true|false}`)
		return false, false
	}
	return *req.Active, true
}

func linkIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	wlID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watchlist id")
		return 0, 0, false
	}
	whID, ok := pathID(r, "webhookID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return 0, 0, false
	}
	return wlID, whID, true
}
