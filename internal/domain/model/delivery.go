package model

import "time"

// TestEvent is the event name sent by webhook test calls.
const TestEvent = "webhook.test"

// DeliveryOutcome summarizes one webhook delivery sequence.
type DeliveryOutcome struct {
	DeliveryID   string
	AlertID      int64 // Zero when no alert row was written.
	Status       AlertStatus
	HTTPStatus   int // Zero when no response was received.
	Attempts     int
	ResponseBody string
	Error        string
	Duration     time.Duration
}

// TestPayload is the body sent by a webhook test call.
type TestPayload struct {
	Event       string `json:"event"`
	WebhookID   int64  `json:"webhook_id"`
	WebhookName string `json:"webhook_name"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}
