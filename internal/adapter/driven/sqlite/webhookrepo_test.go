package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookRepo_CreateAndGet_EncryptsSecret(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Webhook{
		Name:     "siem",
		URL:      "https://siem.internal/hook",
		Secret:   "s3cret",
		Headers:  map[string]string{"X-Team": "blue"},
		IsActive: true,
	})
	require.NoError(t, err)

	var stored string
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT secret FROM webhooks WHERE id = ?`, created.ID).Scan(&stored))
	assert.NotEqual(t, "s3cret", stored, "secret must not be stored in plaintext")
	assert.NotEmpty(t, stored)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s3cret", got.Secret)
	assert.Equal(t, map[string]string{"X-Team": "blue"}, got.Headers)
	assert.True(t, got.IsActive)
}

func TestWebhookRepo_NilHeadersStayNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepo(db, nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Webhook{Name: "plain", URL: "https://x.test", IsActive: true})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Headers)
	assert.Empty(t, got.Secret)
}

func TestWebhookRepo_SecretWithoutKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepo(db, nil)

	_, err := repo.Create(context.Background(), model.Webhook{Name: "signed", URL: "https://x.test", Secret: "s"})
	assert.True(t, errors.Is(err, driven.ErrEncryptionKeyNotSet))
}

func TestWebhookRepo_ListActiveForWatchlist(t *testing.T) {
	db := setupTestDB(t)
	webhooks := NewWebhookRepo(db, testKey)
	watchlists := NewWatchlistRepo(db)
	ctx := context.Background()

	w, err := watchlists.Create(ctx, makeWatchlist("corp", model.MatchModeBoth, "example.com"))
	require.NoError(t, err)

	active, err := webhooks.Create(ctx, model.Webhook{Name: "active", URL: "https://a.test", IsActive: true})
	require.NoError(t, err)
	inactive, err := webhooks.Create(ctx, model.Webhook{Name: "inactive", URL: "https://b.test", IsActive: false})
	require.NoError(t, err)
	_, err = webhooks.Create(ctx, model.Webhook{Name: "unlinked", URL: "https://c.test", IsActive: true})
	require.NoError(t, err)

	require.NoError(t, watchlists.AttachWebhook(ctx, w.ID, active.ID))
	require.NoError(t, watchlists.AttachWebhook(ctx, w.ID, active.ID), "attaching twice is a no-op")
	require.NoError(t, watchlists.AttachWebhook(ctx, w.ID, inactive.ID))

	got, err := webhooks.ListActiveForWatchlist(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)

	require.NoError(t, watchlists.DetachWebhook(ctx, w.ID, active.ID))
	got, err = webhooks.ListActiveForWatchlist(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWebhookRepo_MarkTriggered(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepo(db, nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Webhook{Name: "a", URL: "https://a.test", IsActive: true})
	require.NoError(t, err)

	at := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkTriggered(ctx, created.ID, at))

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, got.LastTriggeredAt.Equal(at))

	err = repo.MarkTriggered(ctx, 12345, at)
	assert.True(t, errors.Is(err, driven.ErrWebhookNotFound))
}
