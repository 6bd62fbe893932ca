package model

import (
	"time"

	"github.com/google/uuid"
)

// Session holds the counters of one automation run.
// It is owned by the session runner and passed explicitly to every stage
// instead of living in package-level state.
type Session struct {
	// ID is a random identifier used for the event log and the history database.
	ID string `json:"id"`

	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// Keyword is the keyword being processed.
	Keyword string `json:"keyword"`

	// Page is the 1-based result page being processed.
	Page int `json:"page"`

	// OpenTabs is the running count of detail tabs opened and not yet closed.
	OpenTabs int `json:"open_tabs"`

	// Totals accumulates counters over the whole session.
	Totals Totals `json:"totals"`
}

// Totals are cumulative session counters.
type Totals struct {
	Keywords       int `json:"keywords"`
	Pages          int `json:"pages"`
	Candidates     int `json:"candidates"`
	Opened         int `json:"opened"`
	OpenFailed     int `json:"open_failed"`
	Processed      int `json:"processed"`
	Closed         int `json:"closed"`
	Pruned         int `json:"pruned"`
	Captchas       int `json:"captchas"`
	CaptchasSolved int `json:"captchas_solved"`
}

// NewSession creates a session with a fresh ID.
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
	}
}

// StartKeyword resets the per-keyword counters.
// OpenTabs is kept because tabs from earlier keywords stay open.
func (s *Session) StartKeyword(keyword string) {
	s.Keyword = keyword
	s.Page = 1
	s.Totals.Keywords++
}

// TabsOpened records n successfully opened tabs.
func (s *Session) TabsOpened(n int) {
	s.OpenTabs += n
	s.Totals.Opened += n
}

// TabsClosed records n tabs closed as external malls.
func (s *Session) TabsClosed(n int) {
	s.OpenTabs = max(s.OpenTabs-n, 0)
	s.Totals.Closed += n
}

// TabsPruned records n tabs closed to respect the tab budget.
func (s *Session) TabsPruned(n int) {
	s.OpenTabs = max(s.OpenTabs-n, 0)
	s.Totals.Pruned += n
}
