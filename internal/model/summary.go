package model

import "time"

// Status is how a session ended.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
	StatusAborted     Status = "aborted"
)

// KeywordResult summarizes one keyword.
type KeywordResult struct {
	Keyword string `json:"keyword"`
	Pages   int    `json:"pages"`
	Opened  int    `json:"opened"`
	Closed  int    `json:"closed"`
	Pruned  int    `json:"pruned"`

	// StopReason explains why the keyword ended before max pages, if it did.
	StopReason string `json:"stop_reason,omitempty"`
}

// Summary is the end-of-session report.
type Summary struct {
	SessionID  string          `json:"session_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Keywords   []KeywordResult `json:"keywords"`
	Totals     Totals          `json:"totals"`

	// OpenTabs is the number of detail tabs left open at the end.
	OpenTabs int `json:"open_tabs"`

	LogFile      string `json:"log_file,omitempty"`
	ArtifactsDir string `json:"artifacts_dir,omitempty"`
}

// Duration returns the session wall time.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// NewSummary builds a summary from the session counters.
func NewSummary(s *Session, keywords []KeywordResult, status Status, finished time.Time) *Summary {
	return &Summary{
		SessionID:  s.ID,
		StartedAt:  s.StartedAt,
		FinishedAt: finished,
		Status:     status,
		Keywords:   keywords,
		Totals:     s.Totals,
		OpenTabs:   s.OpenTabs,
	}
}
