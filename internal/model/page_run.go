package model

// OpenResult is the outcome of opening one candidate in a new tab.
type OpenResult struct {
	Label   string `json:"label"`
	Reviews int    `json:"reviews"`
	OK      bool   `json:"ok"`
}

// CaptchaOutcome is the final state of the CAPTCHA handler for one page.
type CaptchaOutcome string

const (
	CaptchaNotPresent     CaptchaOutcome = "not-present"
	CaptchaAutoSolved     CaptchaOutcome = "auto-solved"
	CaptchaManuallySolved CaptchaOutcome = "manually-solved"
	CaptchaUnresolved     CaptchaOutcome = "unresolved"
)

// Solved reports whether automation may continue.
func (o CaptchaOutcome) Solved() bool {
	return o != CaptchaUnresolved
}

// CaptchaResult describes a CAPTCHA encounter.
type CaptchaResult struct {
	Outcome    CaptchaOutcome `json:"outcome"`
	Attempts   int            `json:"attempts"`
	Confidence float64        `json:"confidence,omitempty"`
}

// PageRun is the working state for one result page.
// The pipeline steps fill it in order: scan, open, filter, CAPTCHA.
type PageRun struct {
	Session *Session `json:"-"`

	Keyword string `json:"keyword"`
	Page    int    `json:"page"`

	// Candidates are the qualified listings found by the scanner.
	Candidates []Candidate `json:"candidates,omitempty"`

	// Opened lists every open attempt in order.
	Opened []OpenResult `json:"opened,omitempty"`

	// Verdicts lists the tab classifications made while filtering and pruning.
	Verdicts []TabVerdict `json:"verdicts,omitempty"`

	Processed int `json:"processed"`
	Closed    int `json:"closed"`
	Pruned    int `json:"pruned"`

	// Captcha is set once the CAPTCHA step has run.
	Captcha *CaptchaResult `json:"captcha,omitempty"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	// Error is the message of the step error that stopped the page, if any.
	Error string `json:"error,omitempty"`
}

// NewPageRun creates the working state for the session's current page.
func NewPageRun(s *Session) *PageRun {
	return &PageRun{
		Session: s,
		Keyword: s.Keyword,
		Page:    s.Page,
	}
}

// OpenedCount returns the number of successful opens.
func (p *PageRun) OpenedCount() int {
	n := 0
	for _, o := range p.Opened {
		if o.OK {
			n++
		}
	}
	return n
}

// PageStat is the stored outline of one processed page.
type PageStat struct {
	Keyword    string `json:"keyword"`
	Page       int    `json:"page"`
	Candidates int    `json:"candidates"`
	Opened     int    `json:"opened"`
	OpenFailed int    `json:"open_failed"`
	Processed  int    `json:"processed"`
	Closed     int    `json:"closed"`
	Pruned     int    `json:"pruned"`
	Captcha    string `json:"captcha,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Stat returns the outline of the page.
func (p *PageRun) Stat() PageStat {
	opened := p.OpenedCount()
	st := PageStat{
		Keyword:    p.Keyword,
		Page:       p.Page,
		Candidates: len(p.Candidates),
		Opened:     opened,
		OpenFailed: len(p.Opened) - opened,
		Processed:  p.Processed,
		Closed:     p.Closed,
		Pruned:     p.Pruned,
		Error:      p.Error,
	}
	if p.Captcha != nil {
		st.Captcha = string(p.Captcha.Outcome)
	}
	return st
}
