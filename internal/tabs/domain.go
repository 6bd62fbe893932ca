package tabs

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/deskmaster/internal/browser"
)

// Host returns the lower-cased host of rawURL. URLs without a host, such as
// "about:blank", are returned whole so they can still be matched.
func Host(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", browser.ErrNoURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", browser.ErrNoURL, rawURL, err)
	}
	if h := u.Hostname(); h != "" {
		return strings.ToLower(h), nil
	}
	return strings.ToLower(rawURL), nil
}

// Domain returns the registrable domain of host, e.g. "naver.com" for
// "smartstore.naver.com". Hosts without a public suffix are returned as is.
func Domain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// MatchDomain reports whether host is pattern or one of its subdomains.
// A leading "*." or "." in pattern is ignored.
func MatchDomain(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	pattern = strings.TrimPrefix(strings.TrimPrefix(pattern, "*"), ".")
	if pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func matchAny(host string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if MatchDomain(host, p) {
			return p, true
		}
	}
	return "", false
}
