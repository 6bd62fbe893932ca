package report

import "errors"

// ErrNoSummary is returned when a report has no session summary to render.
var ErrNoSummary = errors.New("report has no session summary")
