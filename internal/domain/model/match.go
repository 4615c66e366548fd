package model

import "time"

// MatchedItem is a corpus row that hit a watched domain. It only lives for
// the duration of one evaluation and is summarized into the alert payload.
type MatchedItem struct {
	FoundAt  time.Time `json:"found_at"`
	URL      string    `json:"url"`
	Login    string    `json:"login"`
	Password string    `json:"password"`
	Browser  string    `json:"browser"`
}

// Key identifies a matched item for deduplication purposes.
func (m MatchedItem) Key() MatchKey {
	return MatchKey{URL: m.URL, Login: m.Login}
}

// MatchKey is the (url, login) pair used to deduplicate matches.
type MatchKey struct {
	URL   string
	Login string
}

// MatchResult is the per-watchlist outcome of one evaluation.
type MatchResult struct {
	CredentialMatches []MatchedItem
	URLMatches        []MatchedItem
	MatchedDomains    []string
}

// Total returns the number of distinct matched items.
func (r MatchResult) Total() int {
	return len(r.CredentialMatches) + len(r.URLMatches)
}

// Type derives the alert match type from which paths produced hits.
func (r MatchResult) Type() MatchType {
	switch {
	case len(r.CredentialMatches) > 0 && len(r.URLMatches) > 0:
		return MatchTypeBoth
	case len(r.URLMatches) > 0:
		return MatchTypeURL
	default:
		return MatchTypeCredentialEmail
	}
}
