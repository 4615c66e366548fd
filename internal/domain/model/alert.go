package model

import "time"

// Alert is the persisted outcome of delivering one watchlist match to one
// webhook for one device. A retried delivery keeps a single row that is
// updated in place until it reaches a terminal status.
type Alert struct {
	ID                   int64
	WatchlistID          int64
	WebhookID            int64
	DeviceID             string
	UploadBatch          string
	MatchedDomains       string
	MatchType            MatchType
	CredentialMatchCount int
	URLMatchCount        int
	Payload              string
	Status               AlertStatus
	HTTPStatus           *int
	ErrorMessage         *string
	RetryCount           int
	DeliveryID           string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AlertFilter narrows an alert listing. Zero values mean "any".
type AlertFilter struct {
	WatchlistID int64
	WebhookID   int64
	DeviceID    string
	Status      AlertStatus
	Page        int
	PerPage     int
}

// AlertStats holds aggregate counts for the alert log.
type AlertStats struct {
	Total    int
	Today    int
	Success  int
	Failed   int
	Retrying int
}
