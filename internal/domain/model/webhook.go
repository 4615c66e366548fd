package model

import "time"

// Webhook is an HTTP callback target that receives watchlist match alerts.
// An empty Secret disables signing. A nil Headers map means no custom headers.
type Webhook struct {
	ID              int64
	Name            string
	URL             string
	Secret          string
	Headers         map[string]string
	IsActive        bool
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// HasSecret reports whether outgoing deliveries to this webhook are signed.
func (w Webhook) HasSecret() bool {
	return w.Secret != ""
}
