package model

// MatchMode selects which corpus paths a watchlist considers.
type MatchMode string

const (
	MatchModeCredential MatchMode = "credential" // Email domain of credential logins only.
	MatchModeURL        MatchMode = "url"        // Resolved domain of stored URLs only.
	MatchModeBoth       MatchMode = "both"
)

// Valid reports whether m is one of the enumerated match modes.
func (m MatchMode) Valid() bool {
	switch m {
	case MatchModeCredential, MatchModeURL, MatchModeBoth:
		return true
	}
	return false
}

// UsesCredentials reports whether login email domains are matched in this mode.
func (m MatchMode) UsesCredentials() bool {
	return m == MatchModeCredential || m == MatchModeBoth
}

// UsesURLs reports whether resolved URL domains are matched in this mode.
func (m MatchMode) UsesURLs() bool {
	return m == MatchModeURL || m == MatchModeBoth
}

// MatchType describes which paths produced the matches recorded on an alert.
type MatchType string

const (
	MatchTypeCredentialEmail MatchType = "credential_email"
	MatchTypeURL             MatchType = "url"
	MatchTypeBoth            MatchType = "both"
)

// AlertStatus is the delivery state of an alert row.
type AlertStatus string

const (
	AlertStatusSuccess  AlertStatus = "success"
	AlertStatusFailed   AlertStatus = "failed"
	AlertStatusRetrying AlertStatus = "retrying"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusSuccess, AlertStatusFailed, AlertStatusRetrying:
		return true
	}
	return false
}
