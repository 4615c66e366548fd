package model

import "time"

// Watchlist is a named set of domains an operator wants to be alerted about.
// Domains are stored lower-cased and deduplicated, in the order they were
// configured.
type Watchlist struct {
	ID              int64
	Name            string
	Domains         []string
	MatchMode       MatchMode
	IsActive        bool
	LastTriggeredAt *time.Time
	TotalAlerts     int64
	CreatedAt       time.Time
}
