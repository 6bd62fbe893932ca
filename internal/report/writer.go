package report

import (
	"io"

	"github.com/nao1215/deskmaster/internal/model"
)

// SessionReport is everything known about one stored session.
type SessionReport struct {
	Summary  *model.Summary     `json:"summary"`
	Pages    []model.PageStat   `json:"pages,omitempty"`
	Verdicts []model.TabVerdict `json:"verdicts,omitempty"`
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the full session report.
	// Returns the number of bytes written and any error encountered.
	Write(report *SessionReport) (int, error)

	// WriteSummary outputs only the end-of-session summary.
	WriteSummary(summary *model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *SessionReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// outcomes counts what happened to every opened tab.
type outcomes struct {
	kept       int
	closed     int
	pruned     int
	openFailed int
}

func outcomesOf(s *model.Summary) outcomes {
	return outcomes{
		kept:       s.OpenTabs,
		closed:     s.Totals.Closed,
		pruned:     s.Totals.Pruned,
		openFailed: s.Totals.OpenFailed,
	}
}

func (o outcomes) total() int {
	return o.kept + o.closed + o.pruned + o.openFailed
}

const dateLayout = "2006-01-02 15:04:05 MST"
