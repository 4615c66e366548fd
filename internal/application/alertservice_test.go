package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/leakwatch/internal/application"
	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

type alertFixture struct {
	corpus     *mockCorpus
	watchlists *mockWatchlistStore
	webhooks   *mockWebhookStore
	alerts     *mockAlertStore
	sender     *mockSender
	pool       *application.TaskPool
	svc        *application.AlertService
}

func newAlertFixture(corpus *mockCorpus, watchlists *mockWatchlistStore, webhooks *mockWebhookStore) *alertFixture {
	f := &alertFixture{
		corpus:     corpus,
		watchlists: watchlists,
		webhooks:   webhooks,
		alerts:     newMockAlertStore(),
		sender:     &mockSender{},
		pool:       application.NewTaskPool(8),
	}
	dispatch := application.NewDispatchService(f.sender, f.alerts, webhooks, watchlists, nopMetrics{}, testDispatchConfig)
	f.svc = application.NewAlertService(watchlists, webhooks, corpus, dispatch, f.pool, nopMetrics{})
	return f
}

// run evaluates a device and waits for the background deliveries.
func (f *alertFixture) run(deviceID, batch string) {
	f.svc.OnDeviceIngested(context.Background(), deviceID, batch)
	f.pool.Wait()
}

func TestAlertService_DeviceScenario(t *testing.T) {
	corpus := &mockCorpus{
		logins: []model.CredentialRecord{
			record("https://bad.example.com/login", "bad.example.com", "a@bad.example.com"),
			record("", "", "x@other.com"),
		},
		domains: []model.CredentialRecord{
			record("https://bad.example.com/login", "bad.example.com", "a@bad.example.com"),
		},
		device: &model.Device{ID: "D1", MachineName: "DESKTOP-01"},
	}
	watchlists := newMockWatchlistStore(watchlist(1, model.MatchModeBoth, "example.com"))
	webhooks := newMockWebhookStore(model.Webhook{ID: 10, URL: "https://hook.test", IsActive: true})
	webhooks.link(1, 10)

	f := newAlertFixture(corpus, watchlists, webhooks)
	f.run("D1", "batch-1")

	rows := f.alerts.all()
	require.Len(t, rows, 1)
	a := rows[0]
	assert.Equal(t, model.MatchTypeCredentialEmail, a.MatchType)
	assert.Equal(t, 1, a.CredentialMatchCount)
	assert.Equal(t, 0, a.URLMatchCount)
	assert.Equal(t, "example.com", a.MatchedDomains)
	assert.Equal(t, "D1", a.DeviceID)
	assert.Equal(t, "batch-1", a.UploadBatch)
	assert.Equal(t, model.AlertStatusSuccess, a.Status)
	assert.Equal(t, "DESKTOP-01", gjson.Get(a.Payload, "device.machine_name").String())

	assert.Equal(t, 1, watchlists.recordedFor(1))
	assert.Equal(t, 1, corpus.loginCalls)
	assert.Equal(t, 1, corpus.domainCalls)
}

func TestAlertService_NoActiveWatchlistsIsNoop(t *testing.T) {
	corpus := &mockCorpus{}
	inactive := watchlist(1, model.MatchModeBoth, "example.com")
	inactive.IsActive = false

	f := newAlertFixture(corpus, newMockWatchlistStore(inactive), newMockWebhookStore())
	f.run("D1", "batch-1")

	assert.Zero(t, corpus.loginCalls)
	assert.Zero(t, corpus.domainCalls)
	assert.Empty(t, f.alerts.all())
}

func TestAlertService_InactiveWebhooksSkipped(t *testing.T) {
	corpus := &mockCorpus{logins: []model.CredentialRecord{record("https://x.test", "x.test", "a@example.com")}}
	watchlists := newMockWatchlistStore(watchlist(1, model.MatchModeCredential, "example.com"))
	webhooks := newMockWebhookStore(
		model.Webhook{ID: 10, URL: "https://on.test", IsActive: true},
		model.Webhook{ID: 11, URL: "https://off.test", IsActive: false},
	)
	webhooks.link(1, 10, 11)

	f := newAlertFixture(corpus, watchlists, webhooks)
	f.run("D1", "batch-1")

	reqs := f.sender.sent()
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://on.test", reqs[0].URL)

	rows := f.alerts.all()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10), rows[0].WebhookID)
	assert.Equal(t, 1, watchlists.recordedFor(1))
}

func TestAlertService_NoWebhooksNoCounters(t *testing.T) {
	corpus := &mockCorpus{logins: []model.CredentialRecord{record("https://x.test", "x.test", "a@example.com")}}
	watchlists := newMockWatchlistStore(watchlist(1, model.MatchModeCredential, "example.com"))

	f := newAlertFixture(corpus, watchlists, newMockWebhookStore())
	f.run("D1", "batch-1")

	assert.Empty(t, f.sender.sent())
	assert.Zero(t, watchlists.recordedFor(1))
}

func TestAlertService_InactiveWatchlistNeverDispatched(t *testing.T) {
	corpus := &mockCorpus{logins: []model.CredentialRecord{record("https://x.test", "x.test", "a@example.com")}}
	off := watchlist(2, model.MatchModeCredential, "example.com")
	off.IsActive = false
	watchlists := newMockWatchlistStore(watchlist(1, model.MatchModeCredential, "other.com"), off)
	webhooks := newMockWebhookStore(model.Webhook{ID: 10, URL: "https://hook.test", IsActive: true})
	webhooks.link(2, 10)

	f := newAlertFixture(corpus, watchlists, webhooks)
	f.run("D1", "batch-1")

	assert.Empty(t, f.sender.sent())
	assert.Empty(t, f.alerts.all())
	assert.Zero(t, watchlists.recordedFor(2))
}

func TestAlertService_FansOutToEveryWebhook(t *testing.T) {
	corpus := &mockCorpus{logins: []model.CredentialRecord{record("https://x.test", "x.test", "a@example.com")}}
	watchlists := newMockWatchlistStore(watchlist(1, model.MatchModeBoth, "example.com"))
	webhooks := newMockWebhookStore(
		model.Webhook{ID: 10, URL: "https://a.test", IsActive: true},
		model.Webhook{ID: 11, URL: "https://b.test", IsActive: true},
		model.Webhook{ID: 12, URL: "https://c.test", IsActive: true},
	)
	webhooks.link(1, 10, 11, 12)

	f := newAlertFixture(corpus, watchlists, webhooks)
	f.sender.send = respondWith(404)
	f.run("D1", "batch-1")

	reqs := f.sender.sent()
	require.Len(t, reqs, 3)
	for _, r := range reqs[1:] {
		assert.Equal(t, reqs[0].Body, r.Body, "payload serialized once per watchlist")
	}
	assert.Len(t, f.alerts.all(), 3)
	assert.Equal(t, 3, watchlists.recordedFor(1), "counted per fan-out, regardless of outcome")
}

func TestAlertService_CorpusErrorAbandons(t *testing.T) {
	corpus := &mockCorpus{err: errors.New("read failed")}
	watchlists := newMockWatchlistStore(watchlist(1, model.MatchModeBoth, "example.com"))
	webhooks := newMockWebhookStore(model.Webhook{ID: 10, URL: "https://hook.test", IsActive: true})
	webhooks.link(1, 10)

	f := newAlertFixture(corpus, watchlists, webhooks)
	f.run("D1", "batch-1")

	assert.Empty(t, f.sender.sent())
	assert.Zero(t, watchlists.recordedFor(1))
}
