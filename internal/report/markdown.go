package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is meant for keeping session history alongside notes or
// sharing it in an issue tracker.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full session report in Markdown format.
func (w *MarkdownWriter) Write(report *SessionReport) (int, error) {
	if report == nil || report.Summary == nil {
		return 0, ErrNoSummary
	}

	md := markdown.NewMarkdown(w.output)
	w.writeHeader(md, report.Summary)
	w.writeTotals(md, report.Summary)
	w.writeKeywords(md, report.Summary)
	w.writePages(md, report.Pages)
	w.writeVerdicts(md, report.Verdicts)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	if summary == nil {
		return 0, ErrNoSummary
	}

	md := markdown.NewMarkdown(w.output)
	w.writeHeader(md, summary)
	w.writeTotals(md, summary)
	w.writeKeywords(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the session properties.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("DeskMaster Session Report")
	md.PlainText("")

	rows := [][]string{
		{"Session", "`" + s.SessionID + "`"},
		{"Started", s.StartedAt.Format(dateLayout)},
		{"Duration", s.Duration().Round(time.Second).String()},
		{"Status", statusText(s)},
	}
	if s.LogFile != "" {
		rows = append(rows, []string{"Event Log", "`" + s.LogFile + "`"})
	}
	if s.ArtifactsDir != "" {
		rows = append(rows, []string{"Artifacts", "`" + s.ArtifactsDir + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status cell.
func statusText(s *model.Summary) string {
	switch s.Status {
	case model.StatusCompleted:
		return "✅ Completed"
	case model.StatusInterrupted:
		return "⏸️ Interrupted"
	case model.StatusAborted:
		return "🛑 Aborted - " + s.Error
	case model.StatusFailed:
		return "❌ Failed - " + s.Error
	default:
		return string(s.Status)
	}
}

// writeTotals writes the counters, the outcome chart and an alert.
func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, s *model.Summary) {
	md.H2("Totals")
	md.PlainText("")

	t := s.Totals
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Keywords", strconv.Itoa(t.Keywords)},
			{"Pages", strconv.Itoa(t.Pages)},
			{"Candidates", strconv.Itoa(t.Candidates)},
			{"Tabs Opened", strconv.Itoa(t.Opened)},
			{"Open Failures", strconv.Itoa(t.OpenFailed)},
			{"Closed (external mall)", strconv.Itoa(t.Closed)},
			{"Pruned (tab budget)", strconv.Itoa(t.Pruned)},
			{"CAPTCHAs", strconv.Itoa(t.Captchas) + " (" + strconv.Itoa(t.CaptchasSolved) + " solved)"},
			{"**Left Open**", "**" + strconv.Itoa(s.OpenTabs) + "**"},
		},
	})
	md.PlainText("")

	if outcomesOf(s).total() > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of what happened to opened tabs.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Tab Outcomes"),
		piechart.WithShowData(true),
	)

	o := outcomesOf(s)
	if o.kept > 0 {
		chart.LabelAndIntValue("Kept", uint64(o.kept))
	}
	if o.closed > 0 {
		chart.LabelAndIntValue("Closed", uint64(o.closed))
	}
	if o.pruned > 0 {
		chart.LabelAndIntValue("Pruned", uint64(o.pruned))
	}
	if o.openFailed > 0 {
		chart.LabelAndIntValue("Open Failed", uint64(o.openFailed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how the session ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	unresolved := s.Totals.Captchas - s.Totals.CaptchasSolved
	switch {
	case s.Status == model.StatusFailed || s.Status == model.StatusAborted:
		md.Cautionf("Session ended early: %s", s.Error)
	case unresolved > 0:
		md.Warningf("%d CAPTCHA challenge(s) were not solved; affected keywords stopped early.", unresolved)
	case s.Status == model.StatusInterrupted:
		md.Importantf("Session interrupted after %d page(s).", s.Totals.Pages)
	case s.Totals.OpenFailed > 0:
		md.Note(strconv.Itoa(s.Totals.OpenFailed) + " listing(s) could not be opened.")
	default:
		md.Tip("Session completed without intervention.")
	}
	md.PlainText("")
}

// writeKeywords writes one row per keyword.
func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, s *model.Summary) {
	md.H2("Keywords")
	md.PlainText("")

	if len(s.Keywords) == 0 {
		md.PlainText("No keywords processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Keywords))
	for i, k := range s.Keywords {
		stop := k.StopReason
		if stop == "" {
			stop = "-"
		}
		rows[i] = []string{
			truncateString(k.Keyword, 40),
			strconv.Itoa(k.Pages),
			strconv.Itoa(k.Opened),
			strconv.Itoa(k.Closed),
			strconv.Itoa(k.Pruned),
			stop,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Pages", "Opened", "Closed", "Pruned", "Stop Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePages writes the per-page outline.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []model.PageStat) {
	if len(pages) == 0 {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, len(pages))
	for i, p := range pages {
		captcha := p.Captcha
		if captcha == "" {
			captcha = "-"
		}
		rows[i] = []string{
			truncateString(p.Keyword, 30),
			strconv.Itoa(p.Page),
			strconv.Itoa(p.Candidates),
			strconv.Itoa(p.Opened),
			strconv.Itoa(p.Closed),
			strconv.Itoa(p.Pruned),
			captcha,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Page", "Candidates", "Opened", "Closed", "Pruned", "CAPTCHA"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, p := range pages {
		if p.Error != "" {
			md.Details(p.Keyword+" page "+strconv.Itoa(p.Page), p.Error)
		}
	}
}

// writeVerdicts writes every tab classification.
func (w *MarkdownWriter) writeVerdicts(md *markdown.Markdown, verdicts []model.TabVerdict) {
	if len(verdicts) == 0 {
		return
	}

	md.H2("Tabs")
	md.PlainText("")

	rows := make([][]string, len(verdicts))
	for i, v := range verdicts {
		action := "kept"
		if v.Closed {
			action = "closed"
		}
		domain := v.Domain
		if domain == "" {
			domain = "-"
		}
		rows[i] = []string{
			truncateString(v.Keyword, 20),
			strconv.Itoa(v.Page),
			domain,
			v.Verdict.String(),
			action,
			truncateString(v.Reason, 50),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Page", "Domain", "Verdict", "Action", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [DeskMaster](https://github.com/nao1215/deskmaster)*")
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}
