package model

import "time"

// Device holds the metadata the ingestion pipeline recorded for a harvested
// device. Every field except ID may be empty.
type Device struct {
	ID          string
	MachineName string
	IP          string
	Username    string
	HWID        string
	Country     string
	OS          string
	LogDate     string
}

// CredentialRecord is a single stored credential row for a device. Domain is
// the resolved domain of URL as computed at ingestion time.
type CredentialRecord struct {
	URL       string
	Domain    string
	Login     string
	Password  string
	Browser   string
	CreatedAt time.Time
}
