package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

func newTestClient() *Client {
	return NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Millisecond)
}

func statusServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func TestClient_Send_SuccessSendsBodyAndHeaders(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL:        srv.URL,
		Headers:    map[string]string{"Content-Type": "application/json", "X-Custom": "1"},
		Body:       []byte(`{"event":"watchlist.match"}`),
		Timeout:    time.Second,
		MaxRetries: 3,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, `{"event":"watchlist.match"}`, string(gotBody))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "1", gotHeader.Get("X-Custom"))
}

func TestClient_Send_RetriesServerErrorsUntilBudgetExhausted(t *testing.T) {
	srv, hits := statusServer(t, http.StatusInternalServerError, "boom")

	var retries []int
	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL:        srv.URL,
		Body:       []byte(`{}`),
		Timeout:    time.Second,
		MaxRetries: 3,
	}, func(retry, status int, err error) {
		retries = append(retries, retry)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.NoError(t, err)
	})
	require.NoError(t, err)

	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, 4, resp.Attempts)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "boom", resp.Body)
	assert.Equal(t, []int{1, 2, 3}, retries)
}

func TestClient_Send_ClientErrorIsTerminal(t *testing.T) {
	srv, hits := statusServer(t, http.StatusNotFound, "not here")

	observed := false
	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL:        srv.URL,
		Body:       []byte(`{}`),
		Timeout:    time.Second,
		MaxRetries: 3,
	}, func(int, int, error) { observed = true })
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, observed)
}

func TestClient_Send_RecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 3,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, resp.Attempts)
}

func TestClient_Send_NoRetriesWhenBudgetZero(t *testing.T) {
	srv, hits := statusServer(t, http.StatusServiceUnavailable, "")

	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 0,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClient_Send_NetworkErrorRetriedThenReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var observedErrs int
	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL: url, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 2,
	}, func(_ int, status int, err error) {
		assert.Zero(t, status)
		if err != nil {
			observedErrs++
		}
	})
	require.Error(t, err)

	assert.Zero(t, resp.StatusCode)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, 2, observedErrs)
}

func TestClient_Send_TimeoutPerAttempt(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: 50 * time.Millisecond, MaxRetries: 0,
	}, nil)
	require.Error(t, err)
}

func TestClient_Send_ContextCanceled(t *testing.T) {
	srv, _ := statusServer(t, http.StatusOK, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient().Send(ctx, driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 3,
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Send_KeepsJSONErrorBodyVerbatim(t *testing.T) {
	const body = `{"error":"invalid signature","hint":"a & b"}`
	srv, _ := statusServer(t, http.StatusBadRequest, body)

	resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 3,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, body, resp.Body)
}

func TestClient_Send_RedirectIsTerminal(t *testing.T) {
	var sinkHits atomic.Int32
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sinkHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	for _, status := range []int{http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var hits atomic.Int32
			target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				http.Redirect(w, r, sink.URL, status)
			}))
			defer target.Close()

			resp, err := newTestClient().Send(context.Background(), driven.WebhookRequest{
				URL:        target.URL,
				Headers:    map[string]string{"X-Webhook-Signature": "sha256=abc"},
				Body:       []byte(`{}`),
				Timeout:    time.Second,
				MaxRetries: 3,
			}, nil)
			require.NoError(t, err)

			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, 1, resp.Attempts)
			assert.Equal(t, int32(1), hits.Load())
		})
	}

	assert.Zero(t, sinkHits.Load())
}

// closeCountingTransport records CloseIdleConnections calls on the pool.
type closeCountingTransport struct {
	*http.Transport
	closes atomic.Int32
}

func (t *closeCountingTransport) CloseIdleConnections() {
	t.closes.Add(1)
	t.Transport.CloseIdleConnections()
}

func TestClient_Send_FailureKeepsSharedIdleConnections(t *testing.T) {
	tr := &closeCountingTransport{Transport: &http.Transport{}}
	defer tr.Transport.CloseIdleConnections()

	c := newTestClient()
	c.transport = tr

	srv, _ := statusServer(t, http.StatusInternalServerError, "")
	_, err := c.Send(context.Background(), driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 1,
	}, nil)
	require.NoError(t, err)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	_, err = c.Send(context.Background(), driven.WebhookRequest{
		URL: closedURL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 1,
	}, nil)
	require.Error(t, err)

	assert.Zero(t, tr.closes.Load())
}

func TestClient_Send_BackoffDoublesPerRetry(t *testing.T) {
	srv, _ := statusServer(t, http.StatusInternalServerError, "")

	var (
		attemptNums []int
		waits       []time.Duration
	)
	c := newTestClient()
	c.backoff = func(minWait, maxWait time.Duration, n int, resp *http.Response) time.Duration {
		wait := exponentialBackoff(minWait, maxWait, n, resp)
		attemptNums = append(attemptNums, n)
		waits = append(waits, wait)
		return wait
	}

	_, err := c.Send(context.Background(), driven.WebhookRequest{
		URL: srv.URL, Body: []byte(`{}`), Timeout: time.Second, MaxRetries: 3,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, attemptNums)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}, waits)
}

func TestClient_Excerpt(t *testing.T) {
	c := newTestClient()

	assert.Equal(t, "oops", c.excerpt([]byte("<h1>oops</h1><script>alert(1)</script>")))
	assert.Equal(t, `a & "b"`, c.excerpt([]byte(`a & "b"`)))

	long := strings.Repeat("x", 2000)
	assert.Len(t, c.excerpt([]byte(long)), maxBodyChars)

	// Truncation counts runes on the unescaped text.
	amps := c.excerpt([]byte(strings.Repeat("&", 600)))
	assert.Equal(t, strings.Repeat("&", maxBodyChars), amps)

	wide := c.excerpt([]byte(strings.Repeat("é", 600)))
	assert.True(t, utf8.ValidString(wide))
	assert.Equal(t, maxBodyChars, utf8.RuneCountInString(wide))

	assert.True(t, utf8.ValidString(c.excerpt([]byte{'o', 'k', 0xff, 0xfe})))
}

func TestExponentialBackoff(t *testing.T) {
	base := time.Second
	assert.Equal(t, 1*time.Second, exponentialBackoff(base, 0, 0, nil))
	assert.Equal(t, 2*time.Second, exponentialBackoff(base, 0, 1, nil))
	assert.Equal(t, 4*time.Second, exponentialBackoff(base, 0, 2, nil))
}
