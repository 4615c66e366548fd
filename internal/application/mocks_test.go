package application_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockCorpus struct {
	mu          sync.Mutex
	logins      []model.CredentialRecord
	domains     []model.CredentialRecord
	device      *model.Device
	loginCalls  int
	domainCalls int
	err         error
}

func (m *mockCorpus) ListLoginRecords(_ context.Context, _ string) ([]model.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginCalls++
	return m.logins, m.err
}

func (m *mockCorpus) ListDomainRecords(_ context.Context, _ string) ([]model.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCalls++
	return m.domains, m.err
}

func (m *mockCorpus) GetDevice(_ context.Context, _ string) (*model.Device, error) {
	return m.device, nil
}

type mockWatchlistStore struct {
	mu        sync.Mutex
	lists     []model.Watchlist
	recorded  map[int64]int
	triggered map[int64]int
	attached  map[[2]int64]bool
}

func newMockWatchlistStore(lists ...model.Watchlist) *mockWatchlistStore {
	return &mockWatchlistStore{
		lists:     lists,
		recorded:  map[int64]int{},
		triggered: map[int64]int{},
		attached:  map[[2]int64]bool{},
	}
}

func (m *mockWatchlistStore) Create(_ context.Context, w model.Watchlist) (model.Watchlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = int64(len(m.lists) + 1)
	m.lists = append(m.lists, w)
	return w, nil
}

func (m *mockWatchlistStore) GetByID(_ context.Context, id int64) (*model.Watchlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.lists {
		if w.ID == id {
			return &w, nil
		}
	}
	return nil, nil
}

func (m *mockWatchlistStore) ListAll(_ context.Context) ([]model.Watchlist, error) {
	return m.lists, nil
}

func (m *mockWatchlistStore) ListActive(_ context.Context) ([]model.Watchlist, error) {
	var out []model.Watchlist
	for _, w := range m.lists {
		if w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockWatchlistStore) SetActive(_ context.Context, _ int64, _ bool) error { return nil }

func (m *mockWatchlistStore) Delete(_ context.Context, _ int64) error { return nil }

func (m *mockWatchlistStore) AttachWebhook(_ context.Context, watchlistID, webhookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached[[2]int64{watchlistID, webhookID}] = true
	return nil
}

func (m *mockWatchlistStore) DetachWebhook(_ context.Context, watchlistID, webhookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attached, [2]int64{watchlistID, webhookID})
	return nil
}

func (m *mockWatchlistStore) RecordAlerts(_ context.Context, id int64, n int, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded[id] += n
	return nil
}

func (m *mockWatchlistStore) MarkTriggered(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered[id]++
	return nil
}

func (m *mockWatchlistStore) recordedFor(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recorded[id]
}

type mockWebhookStore struct {
	mu          sync.Mutex
	hooks       []model.Webhook
	byWatchlist map[int64][]int64
	triggered   map[int64]int
}

func newMockWebhookStore(hooks ...model.Webhook) *mockWebhookStore {
	return &mockWebhookStore{
		hooks:       hooks,
		byWatchlist: map[int64][]int64{},
		triggered:   map[int64]int{},
	}
}

func (m *mockWebhookStore) link(watchlistID int64, webhookIDs ...int64) {
	m.byWatchlist[watchlistID] = append(m.byWatchlist[watchlistID], webhookIDs...)
}

func (m *mockWebhookStore) Create(_ context.Context, w model.Webhook) (model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = int64(len(m.hooks) + 1)
	m.hooks = append(m.hooks, w)
	return w, nil
}

func (m *mockWebhookStore) GetByID(_ context.Context, id int64) (*model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.hooks {
		if w.ID == id {
			return &w, nil
		}
	}
	return nil, nil
}

func (m *mockWebhookStore) ListAll(_ context.Context) ([]model.Webhook, error) {
	return m.hooks, nil
}

func (m *mockWebhookStore) ListActiveForWatchlist(_ context.Context, watchlistID int64) ([]model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Webhook
	for _, id := range m.byWatchlist[watchlistID] {
		for _, w := range m.hooks {
			if w.ID == id && w.IsActive {
				out = append(out, w)
			}
		}
	}
	return out, nil
}

func (m *mockWebhookStore) SetActive(_ context.Context, _ int64, _ bool) error { return nil }

func (m *mockWebhookStore) MarkTriggered(_ context.Context, id int64, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered[id]++
	return nil
}

type mockAlertStore struct {
	mu        sync.Mutex
	rows      map[int64]model.Alert
	history   []model.Alert // every Create and Update, in order
	createErr error
}

func newMockAlertStore() *mockAlertStore {
	return &mockAlertStore{rows: map[int64]model.Alert{}}
}

func (m *mockAlertStore) Create(_ context.Context, a model.Alert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return 0, m.createErr
	}
	a.ID = int64(len(m.rows) + 1)
	m.rows[a.ID] = a
	m.history = append(m.history, a)
	return a.ID, nil
}

func (m *mockAlertStore) Update(_ context.Context, a model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.ID]; !ok {
		return driven.ErrAlertNotFound
	}
	m.rows[a.ID] = a
	m.history = append(m.history, a)
	return nil
}

func (m *mockAlertStore) GetByID(_ context.Context, id int64) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mockAlertStore) List(_ context.Context, _ model.AlertFilter) ([]model.Alert, int, error) {
	all := m.all()
	return all, len(all), nil
}

func (m *mockAlertStore) Stats(_ context.Context, _ time.Time) (model.AlertStats, error) {
	return model.AlertStats{}, nil
}

// all returns the stored rows ordered by ID.
func (m *mockAlertStore) all() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sendFunc scripts a mockSender response.
type sendFunc func(req driven.WebhookRequest, observe driven.RetryObserver) (driven.WebhookResponse, error)

type mockSender struct {
	mu       sync.Mutex
	requests []driven.WebhookRequest
	send     sendFunc
}

func (m *mockSender) Send(_ context.Context, req driven.WebhookRequest, observe driven.RetryObserver) (driven.WebhookResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.send == nil {
		return driven.WebhookResponse{StatusCode: 200, Attempts: 1}, nil
	}
	return m.send(req, observe)
}

func (m *mockSender) sent() []driven.WebhookRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driven.WebhookRequest(nil), m.requests...)
}

// respondWith returns a sender script that replays statuses as successive
// attempts, stopping at the first non-5xx status or when the retry budget is
// exhausted, and reporting each retry to the observer.
func respondWith(statuses ...int) sendFunc {
	return func(req driven.WebhookRequest, observe driven.RetryObserver) (driven.WebhookResponse, error) {
		attempts := 0
		for i, status := range statuses {
			if i > 0 && observe != nil {
				observe(i, statuses[i-1], nil)
			}
			attempts++
			if status < 500 || i == req.MaxRetries {
				return driven.WebhookResponse{StatusCode: status, Attempts: attempts, Body: "resp"}, nil
			}
		}
		return driven.WebhookResponse{StatusCode: statuses[len(statuses)-1], Attempts: attempts, Body: "resp"}, nil
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveEvaluation(int, time.Duration) {}
func (nopMetrics) ObserveDelivery(string, int, time.Duration) {}
func (nopMetrics) IncInflight() {}
func (nopMetrics) DecInflight() {}
