package model

// AlertEvent is the event name sent with every match notification.
const AlertEvent = "watchlist.match"

// AlertPayload is the JSON document delivered to webhooks. The serialized
// form is also stored verbatim on the alert row.
type AlertPayload struct {
	Event             string        `json:"event"`
	WatchlistID       int64         `json:"watchlist_id"`
	WatchlistName     string        `json:"watchlist_name"`
	MatchedDomains    string        `json:"matched_domains"`
	Device            DevicePayload `json:"device"`
	CredentialMatches []MatchedItem `json:"credential_matches"`
	URLMatches        []MatchedItem `json:"url_matches"`
	Summary           AlertSummary  `json:"summary"`
	TriggeredAt       string        `json:"triggered_at"`
}

// DevicePayload is the device metadata block of an alert payload.
type DevicePayload struct {
	ID          string `json:"id"`
	MachineName string `json:"machine_name"`
	IP          string `json:"ip"`
	Username    string `json:"username"`
	HWID        string `json:"hwid"`
	Country     string `json:"country"`
	OS          string `json:"os"`
	LogDate     string `json:"log_date"`
}

// AlertSummary carries match counts and the upload batch identifier.
type AlertSummary struct {
	CredentialMatchCount int    `json:"credential_match_count"`
	URLMatchCount        int    `json:"url_match_count"`
	TotalMatches         int    `json:"total_matches"`
	UploadBatch          string `json:"upload_batch"`
	DeviceID             string `json:"device_id"`
}
