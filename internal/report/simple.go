package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/deskmaster/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// It is what the run command prints when a session ends, so it uses plain
// ASCII rules rather than terminal colors and can be piped to a file as is.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose adds the per-tab verdict reasons.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary followed by the stored pages and verdicts.
func (w *SimpleWriter) Write(report *SessionReport) (int, error) {
	if report == nil || report.Summary == nil {
		return 0, ErrNoSummary
	}

	var sb strings.Builder
	w.writeHeader(&sb, report.Summary)
	w.writeKeywords(&sb, report.Summary)
	w.writeTotals(&sb, report.Summary)
	w.writePages(&sb, report.Pages)
	w.writeVerdicts(&sb, report.Verdicts)
	w.writeFooter(&sb, report.Summary)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the end-of-session summary.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	if summary == nil {
		return 0, ErrNoSummary
	}

	var sb strings.Builder
	w.writeHeader(&sb, summary)
	w.writeKeywords(&sb, summary)
	w.writeTotals(&sb, summary)
	w.writeFooter(&sb, summary)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the session identity and how it ended.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.Summary) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                     DESKMASTER SESSION SUMMARY\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Session:   %s\n", s.SessionID)
	fmt.Fprintf(sb, "Started:   %s\n", s.StartedAt.Format(dateLayout))
	fmt.Fprintf(sb, "Duration:  %s\n", s.Duration().Round(time.Second))

	switch {
	case s.Error != "":
		fmt.Fprintf(sb, "Status:    %s - %s\n", strings.ToUpper(string(s.Status)), s.Error)
	default:
		fmt.Fprintf(sb, "Status:    %s\n", strings.ToUpper(string(s.Status)))
	}
	sb.WriteString("\n")
}

// writeKeywords writes one line per keyword.
func (w *SimpleWriter) writeKeywords(sb *strings.Builder, s *model.Summary) {
	if len(s.Keywords) == 0 && !w.showEmpty {
		return
	}

	section(sb, "KEYWORDS")
	if len(s.Keywords) == 0 {
		sb.WriteString("  No keywords processed\n\n")
		return
	}

	fmt.Fprintf(sb, "  %-24s %6s %7s %7s %7s  %s\n", "KEYWORD", "PAGES", "OPENED", "CLOSED", "PRUNED", "STOP")
	for _, k := range s.Keywords {
		stop := k.StopReason
		if stop == "" {
			stop = "-"
		}
		fmt.Fprintf(sb, "  %-24s %6d %7d %7d %7d  %s\n",
			truncateString(k.Keyword, 24), k.Pages, k.Opened, k.Closed, k.Pruned, stop)
	}
	sb.WriteString("\n")
}

// writeTotals writes the session-wide counters.
func (w *SimpleWriter) writeTotals(sb *strings.Builder, s *model.Summary) {
	section(sb, "TOTALS")

	t := s.Totals
	fmt.Fprintf(sb, "  Keywords:        %d\n", t.Keywords)
	fmt.Fprintf(sb, "  Pages:           %d\n", t.Pages)
	fmt.Fprintf(sb, "  Candidates:      %d\n", t.Candidates)
	fmt.Fprintf(sb, "  Tabs opened:     %d\n", t.Opened)
	if t.OpenFailed > 0 || w.showEmpty {
		fmt.Fprintf(sb, "  Open failures:   %d\n", t.OpenFailed)
	}
	fmt.Fprintf(sb, "  Closed external: %d\n", t.Closed)
	fmt.Fprintf(sb, "  Pruned:          %d\n", t.Pruned)
	fmt.Fprintf(sb, "  Left open:       %d\n", s.OpenTabs)
	fmt.Fprintf(sb, "  CAPTCHAs:        %d (%d solved)\n", t.Captchas, t.CaptchasSolved)
	sb.WriteString("\n")
}

// writePages writes the per-page outline.
func (w *SimpleWriter) writePages(sb *strings.Builder, pages []model.PageStat) {
	if len(pages) == 0 && !w.showEmpty {
		return
	}

	section(sb, "PAGES")
	if len(pages) == 0 {
		sb.WriteString("  No pages recorded\n\n")
		return
	}

	for _, p := range pages {
		fmt.Fprintf(sb, "  [%s #%d] candidates=%d opened=%d closed=%d pruned=%d",
			p.Keyword, p.Page, p.Candidates, p.Opened, p.Closed, p.Pruned)
		if p.Captcha != "" && p.Captcha != string(model.CaptchaNotPresent) {
			fmt.Fprintf(sb, " captcha=%s", p.Captcha)
		}
		sb.WriteString("\n")
		if p.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", p.Error)
		}
	}
	sb.WriteString("\n")
}

// writeVerdicts writes every tab classification.
func (w *SimpleWriter) writeVerdicts(sb *strings.Builder, verdicts []model.TabVerdict) {
	if len(verdicts) == 0 && !w.showEmpty {
		return
	}

	section(sb, "TABS")
	if len(verdicts) == 0 {
		sb.WriteString("  No tabs classified\n\n")
		return
	}

	for _, v := range verdicts {
		marker := "+"
		if v.Closed {
			marker = "x"
		}
		fmt.Fprintf(sb, "  [%s] %-8s %s\n", marker, v.Verdict, v.URL)
		if w.verbose {
			fmt.Fprintf(sb, "      Reason: %s\n", v.Reason)
			if v.Cause != "" {
				fmt.Fprintf(sb, "      Closed: %s\n", v.Cause)
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes where the detailed output lives.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, s *model.Summary) {
	rule(sb, "=")
	if s.LogFile != "" {
		fmt.Fprintf(sb, "Event log: %s\n", s.LogFile)
	}
	if s.ArtifactsDir != "" {
		fmt.Fprintf(sb, "Artifacts: %s\n", s.ArtifactsDir)
	}
	rule(sb, "=")
}
