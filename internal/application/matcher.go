package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
	"github.com/ericfisherdev/leakwatch/internal/domain/port/driven"
)

// Matcher finds which watchlists were hit by a device's stored credentials.
// Each call issues at most two corpus queries no matter how many watchlists
// or domains are configured; all matching happens in memory.
type Matcher struct {
	corpus driven.CorpusReader
}

// NewMatcher creates a Matcher reading from the given corpus.
func NewMatcher(corpus driven.CorpusReader) *Matcher {
	return &Matcher{corpus: corpus}
}

// domainSet is a set of watched domains.
type domainSet map[string]struct{}

// buckets maps a watched domain to the corpus items that hit it.
type buckets map[string][]model.MatchedItem

// Match evaluates watchlists against the device's records. Watchlists with no
// matches are absent from the result.
func (m *Matcher) Match(ctx context.Context, deviceID string, watchlists []model.Watchlist) (map[int64]model.MatchResult, error) {
	credDomains, urlDomains := watchedDomains(watchlists)

	credBuckets := buckets{}
	if len(credDomains) > 0 {
		records, err := m.corpus.ListLoginRecords(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("load login records for device %s: %w", deviceID, err)
		}
		for _, rec := range records {
			domain, ok := loginDomain(rec.Login)
			if !ok {
				continue
			}
			for _, w := range credDomains.hits(domain) {
				credBuckets[w] = append(credBuckets[w], matchedItem(rec))
			}
		}
	}

	urlBuckets := buckets{}
	if len(urlDomains) > 0 {
		records, err := m.corpus.ListDomainRecords(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("load domain records for device %s: %w", deviceID, err)
		}
		for _, rec := range records {
			domain := strings.ToLower(strings.TrimSpace(rec.Domain))
			if domain == "" {
				continue
			}
			for _, w := range urlDomains.hits(domain) {
				urlBuckets[w] = append(urlBuckets[w], matchedItem(rec))
			}
		}
	}

	results := make(map[int64]model.MatchResult)
	for _, wl := range watchlists {
		res := collect(wl, credBuckets, urlBuckets)
		if res.Total() == 0 {
			continue
		}
		results[wl.ID] = res
	}

	return results, nil
}

// collect unions the buckets of a watchlist's domains according to its mode.
// Items are deduplicated by (url, login) within the watchlist; a URL hit that
// is already a credential hit is dropped.
func collect(wl model.Watchlist, credBuckets, urlBuckets buckets) model.MatchResult {
	var res model.MatchResult
	seen := make(map[model.MatchKey]struct{})

	for _, d := range wl.Domains {
		d = normalizeWatched(d)
		hit := false

		if wl.MatchMode.UsesCredentials() {
			for _, item := range credBuckets[d] {
				hit = true
				if _, dup := seen[item.Key()]; dup {
					continue
				}
				seen[item.Key()] = struct{}{}
				res.CredentialMatches = append(res.CredentialMatches, item)
			}
		}

		if hit {
			res.MatchedDomains = append(res.MatchedDomains, d)
		}
	}

	if !wl.MatchMode.UsesURLs() {
		return res
	}

	for _, d := range wl.Domains {
		d = normalizeWatched(d)
		hit := false

		for _, item := range urlBuckets[d] {
			hit = true
			if _, dup := seen[item.Key()]; dup {
				continue
			}
			seen[item.Key()] = struct{}{}
			res.URLMatches = append(res.URLMatches, item)
		}

		if hit && !slices.Contains(res.MatchedDomains, d) {
			res.MatchedDomains = append(res.MatchedDomains, d)
		}
	}

	if len(res.MatchedDomains) > 1 {
		res.MatchedDomains = inOrder(wl.Domains, res.MatchedDomains)
	}

	return res
}

// watchedDomains splits the configured domains into the set matched against
// login email domains and the set matched against resolved URL domains.
func watchedDomains(watchlists []model.Watchlist) (cred, urls domainSet) {
	cred, urls = domainSet{}, domainSet{}

	for _, wl := range watchlists {
		for _, raw := range wl.Domains {
			d := normalizeWatched(raw)
			if d == "" {
				slog.Warn("watchlist has an empty domain", "watchlist_id", wl.ID)
				continue
			}
			if wl.MatchMode.UsesCredentials() {
				cred[d] = struct{}{}
			}
			if wl.MatchMode.UsesURLs() {
				urls[d] = struct{}{}
			}
		}
	}

	return cred, urls
}

// hits returns every watched domain that domain equals or is a subdomain of.
// Walking the label suffixes of domain gives the same answer as testing each
// watched domain w for domain == w || HasSuffix(domain, "."+w).
func (s domainSet) hits(domain string) []string {
	var out []string
	for {
		if _, ok := s[domain]; ok {
			out = append(out, domain)
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return out
		}
		domain = domain[i+1:]
	}
}

// loginDomain returns the lower-cased text after the last "@" of login.
func loginDomain(login string) (string, bool) {
	i := strings.LastIndexByte(login, '@')
	if i < 0 {
		return "", false
	}
	d := strings.ToLower(strings.TrimSpace(login[i+1:]))
	return d, d != ""
}

func normalizeWatched(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

func matchedItem(rec model.CredentialRecord) model.MatchedItem {
	return model.MatchedItem{
		FoundAt:  rec.CreatedAt,
		URL:      rec.URL,
		Login:    rec.Login,
		Password: rec.Password,
		Browser:  rec.Browser,
	}
}

// inOrder returns the members of subset ordered as they appear in order.
func inOrder(order, subset []string) []string {
	out := make([]string, 0, len(subset))
	for _, d := range order {
		d = normalizeWatched(d)
		if slices.Contains(subset, d) && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}
