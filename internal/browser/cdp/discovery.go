package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/deskmaster/internal/browser"
)

// devtoolsTarget is one entry of the /json/list discovery endpoint.
type devtoolsTarget struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// listPages returns the page targets known to the DevTools endpoint,
// most recently used first.
func listPages(ctx context.Context, debugURL string) ([]devtoolsTarget, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(debugURL, "/") + "/json/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", browser.ErrProvider, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot reach %s: %w", browser.ErrProvider, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", browser.ErrProvider, endpoint, resp.Status)
	}

	var all []devtoolsTarget
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("%w: invalid target list: %w", browser.ErrProvider, err)
	}

	pages := all[:0]
	for _, t := range all {
		if t.Type == "page" && userPage(t.URL) {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// userPage filters out DevTools and extension pages.
func userPage(url string) bool {
	for _, p := range []string{"devtools://", "chrome-extension://", "chrome-untrusted://"} {
		if strings.HasPrefix(url, p) {
			return false
		}
	}
	return true
}
