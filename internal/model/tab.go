package model

// Tab is one open browser tab.
// Index is positional and changes whenever a tab before it closes, so a Tab
// must not be reused after any tab has been opened or closed.
type Tab struct {
	// Index is the zero-based position; index 0 is the result list.
	Index int `json:"index"`

	// ID is the browser target id backing the tab.
	ID string `json:"id,omitempty"`

	// URL is the tab URL at enumeration time.
	URL string `json:"url"`
}

// Verdict is the merchant classification of a detail tab.
type Verdict int

const (
	// VerdictExternal is a listing hosted by a third-party merchant.
	VerdictExternal Verdict = iota

	// VerdictInternal is a listing hosted by the platform's own mall.
	VerdictInternal
)

// String returns the verdict name used in logs and storage.
func (v Verdict) String() string {
	switch v {
	case VerdictInternal:
		return "internal"
	case VerdictExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Decision is the outcome of classifying one tab.
type Decision struct {
	Verdict Verdict `json:"verdict"`

	// Reason names the rule that decided, e.g. "blocked-domain:ad.example.com"
	// or "signal:스마트스토어".
	Reason string `json:"reason"`
}

// Internal reports whether the tab should be kept.
func (d Decision) Internal() bool {
	return d.Verdict == VerdictInternal
}

// TabVerdict records one classification together with what happened to the tab.
type TabVerdict struct {
	Keyword string  `json:"keyword"`
	Page    int     `json:"page"`
	Tab     int     `json:"tab"`
	URL     string  `json:"url"`
	Domain  string  `json:"domain"`
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
	Closed  bool    `json:"closed"`
	Cause   string  `json:"cause,omitempty"`
}
