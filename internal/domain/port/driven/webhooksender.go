package driven

import (
	"context"
	"time"
)

// WebhookRequest is a fully prepared outbound webhook call. Body is sent
// as-is on every attempt.
type WebhookRequest struct {
	URL        string
	Headers    map[string]string
	Body       []byte
	Timeout    time.Duration // Per-attempt timeout.
	MaxRetries int           // Retries after the initial attempt.
}

// WebhookResponse describes the final attempt of a webhook call.
type WebhookResponse struct {
	StatusCode int    // Zero when no response was received.
	Body       string // Truncated response body.
	Attempts   int
	Duration   time.Duration
}

// RetryObserver is notified before each retry with the retry number (1-based)
// and the outcome of the attempt that triggered it.
type RetryObserver func(retry int, statusCode int, err error)

// WebhookSender defines the driven port for delivering webhook requests.
// Implementations retry network errors and 5xx responses up to
// req.MaxRetries times with exponential backoff; other responses are final.
// A non-nil error means the final attempt produced no HTTP response.
type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest, observe RetryObserver) (WebhookResponse, error)
}
