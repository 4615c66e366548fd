// Package webhook implements the WebhookSender port on top of go-retryablehttp.
package webhook

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WebhookSender = (*Client)(nil)

const (
	// maxBodyRead caps how much of a receiver's response is read.
	maxBodyRead = 64 << 10
	// maxBodyChars is the length of the response excerpt kept for the audit log.
	maxBodyChars = 500
)

// Client delivers webhook requests over a shared pooled transport. Each Send
// builds its own retryablehttp.Client so the per-call timeout, retry budget and
// observer never leak between concurrent deliveries.
type Client struct {
	transport http.RoundTripper
	logger    *slog.Logger
	retryBase time.Duration
	backoff   retryablehttp.Backoff
	sanitizer *bluemonday.Policy
}

// NewClient creates a webhook Client. retryBase is the first backoff interval;
// subsequent waits double (base, 2*base, 4*base, ...).
func NewClient(logger *slog.Logger, retryBase time.Duration) *Client {
	return &Client{
		transport: cleanhttp.DefaultPooledTransport(),
		logger:    logger,
		retryBase: retryBase,
		backoff:   exponentialBackoff,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Send POSTs req.Body to req.URL. Network errors and 5xx responses are retried
// up to req.MaxRetries times; any other response ends the sequence. The
// returned response always describes the final attempt. observe may be nil.
func (c *Client) Send(ctx context.Context, req driven.WebhookRequest, observe driven.RetryObserver) (driven.WebhookResponse, error) {
	var (
		attempts   int
		lastStatus int
		lastErr    error
	)

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: sharedTransport{c.transport},
		Timeout:   req.Timeout,
		// A redirect would be followed as a bodiless GET carrying the
		// signature; the 3xx itself is the terminal outcome.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	rc.Logger = c.logger
	rc.RetryMax = req.MaxRetries
	rc.RetryWaitMin = c.retryBase
	rc.RetryWaitMax = c.retryBase << max(req.MaxRetries, 0)
	rc.Backoff = c.backoff

	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		lastStatus, lastErr = 0, err
		if err != nil {
			return true, nil
		}
		lastStatus = resp.StatusCode
		return resp.StatusCode >= http.StatusInternalServerError, nil
	}

	rc.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, retry int) {
		attempts = retry + 1
		if retry > 0 && observe != nil {
			observe(retry, lastStatus, lastErr)
		}
	}

	// Hand back the last response untouched so the caller can record the
	// status and body of an exhausted 5xx sequence.
	rc.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		return resp, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, req.URL, req.Body)
	if err != nil {
		return driven.WebhookResponse{}, fmt.Errorf("build webhook request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := rc.Do(httpReq)
	out := driven.WebhookResponse{Attempts: attempts, Duration: time.Since(start)}

	if resp != nil {
		defer resp.Body.Close()
		out.StatusCode = resp.StatusCode

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
		if readErr != nil {
			c.logger.Warn("read webhook response body", "url", req.URL, "error", readErr)
		}
		out.Body = c.excerpt(raw)
	}

	if err != nil && resp == nil {
		return out, fmt.Errorf("post webhook after %d attempt(s): %w", attempts, err)
	}

	return out, nil
}

// excerpt strips markup from a response body and truncates it for storage.
// The text is kept unescaped so JSON and plain-text bodies read as sent.
func (c *Client) excerpt(raw []byte) string {
	text := strings.ToValidUTF8(string(raw), "\uFFFD")
	text = html.UnescapeString(c.sanitizer.Sanitize(text))

	clean := []rune(text)
	if len(clean) > maxBodyChars {
		clean = clean[:maxBodyChars]
	}
	return string(clean)
}

// sharedTransport hides the pooled transport's CloseIdleConnections, which
// retryablehttp calls after a failed sequence, so one failing receiver does
// not drop the idle connections of concurrent deliveries.
type sharedTransport struct {
	rt http.RoundTripper
}

func (t sharedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}

func exponentialBackoff(base, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return base << attemptNum
}
