package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// ErrInvalidDomain is returned when a watched domain cannot be normalized or
// is too broad to watch (a bare public suffix such as "com" or "co.uk").
var ErrInvalidDomain = errors.New("invalid domain")

// NormalizeDomain reduces operator input to a bare lower-case host name.
// Schemes, credentials, ports, paths and a leading "*." wildcard are removed.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))

	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndexByte(d, '@'); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.LastIndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "*.")
	d = strings.Trim(d, ".")

	if d == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrInvalidDomain, raw)
	}
	if strings.ContainsAny(d, " \t*") || strings.Contains(d, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	if _, err := publicsuffix.Domain(d); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}

	return d, nil
}

// NormalizeDomains normalizes every entry and drops duplicates, keeping the
// first occurrence's position.
func NormalizeDomains(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, r := range raw {
		d, err := NormalizeDomain(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one domain is required", ErrInvalidDomain)
	}

	return out, nil
}
