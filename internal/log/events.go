package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/deskmaster/internal/model"
)

// Event names written to the session log.
const (
	EventSessionStart          = "session-start"
	EventSessionEnd            = "session-end"
	EventPresetVerify          = "preset-verify"
	EventListScanStart         = "list-scan-start"
	EventCandidateFound        = "candidate-found"
	EventOpenTabOK             = "open-new-tab-ok"
	EventOpenTabFail           = "open-new-tab-fail"
	EventTabLimitHit           = "tab-limit-hit"
	EventTabPruned             = "tab-pruned"
	EventDetailCheckStart      = "detail-check-start"
	EventInternalSignalOK      = "internal-signal-ok"
	EventInternalSignalMissing = "internal-signal-missing"
	EventTabClosed             = "tab-closed"
	EventPageMove              = "page-move"
	EventPageWait              = "page-wait"
	EventCaptchaDetected       = "captcha-detected"
	EventCaptchaSolveStart     = "captcha-solve-start"
	EventCaptchaSolveOK        = "captcha-solve-ok"
	EventCaptchaSolveFail      = "captcha-solve-fail"
	EventPause                 = "pause"
	EventResume                = "resume"
	EventOCRAttempt            = "ocr-attempt"
	EventError                 = "error"
	EventInfo                  = "info"
)

// Phases used by multi-phase events.
const (
	PhaseStart   = "start"
	PhaseOK      = "ok"
	PhaseRetry   = "retry"
	PhaseFail    = "fail"
	PhaseAttempt = "attempt"
)

// Error codes carried by error events.
const (
	CodeScanElement = "scan-element"
	CodeOpenTab     = "open-tab"
	CodeTabRead     = "tab-read"
	CodeTabClose    = "tab-close"
	CodePreset      = "preset"
	CodeCaptchaTool = "captcha-tool"
	CodeCaptcha     = "captcha-unresolved"
	CodeScreenshot  = "screenshot"
	CodeOCR         = "ocr"
	CodePageMove    = "page-move"
	CodeEnvironment = "environment"
	CodeDatabase    = "database"
	CodePanic       = "panic"
)

// logFileLayout names session files deskmaster_YYYYMMDD_HHMMSS.jsonl.
const logFileLayout = "20060102_150405"

// Recorder appends catalog events to a JSON lines sink.
// A nil *Recorder discards everything.
type Recorder struct {
	logger *slog.Logger
	closer io.Closer
	path   string
	diag   *slog.Logger
	hook   func(event, phase string)
	now    func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithDiagnostics mirrors error events to the diagnostic logger.
func WithDiagnostics(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.diag = l
	}
}

// WithEventHook registers fn to be called with the name and phase of every
// emitted event. phase is empty for single-phase events.
func WithEventHook(fn func(event, phase string)) RecorderOption {
	return func(r *Recorder) {
		r.hook = fn
	}
}

// WithClock overrides the clock used to name the log file.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates dir if needed and opens a fresh session file in it.
func NewRecorder(dir string, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, "deskmaster_"+r.now().Format(logFileLayout)+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // path is built from the configured log dir
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	r.path = path
	r.closer = f
	r.logger = slog.New(newEventHandler(f))
	return r, nil
}

// NewRecorderWriter writes events to w. The caller owns w.
func NewRecorderWriter(w io.Writer, opts ...RecorderOption) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = slog.New(newEventHandler(w))
	return r
}

// Discard returns a Recorder that writes nowhere.
func Discard() *Recorder {
	return NewRecorderWriter(io.Discard)
}

// Path returns the session file path, or "" for writer-backed recorders.
func (r *Recorder) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Close closes the session file.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func newEventHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.MessageKey:
				a.Key = "event"
			case slog.LevelKey:
				return slog.Attr{}
			}
			return a
		},
	})
}

// scope holds the optional top-level fields of an event.
type scope struct {
	phase   string
	keyword string
	page    int
	tab     int
	hasPage bool
	hasTab  bool
}

func at(keyword string, page int) scope {
	return scope{keyword: keyword, page: page, hasPage: true}
}

func onTab(tab int) scope {
	return scope{tab: tab, hasTab: true}
}

func (r *Recorder) emit(event string, sc scope, extra ...any) {
	if r == nil || r.logger == nil {
		return
	}

	attrs := make([]slog.Attr, 0, 5)
	if sc.phase != "" {
		attrs = append(attrs, slog.String("phase", sc.phase))
	}
	if sc.keyword != "" {
		attrs = append(attrs, slog.String("keyword", sc.keyword))
	}
	if sc.hasPage {
		attrs = append(attrs, slog.Int("page", sc.page))
	}
	if sc.hasTab {
		attrs = append(attrs, slog.Int("tab", sc.tab))
	}
	if len(extra) > 0 {
		attrs = append(attrs, slog.Group("extra", extra...))
	}

	r.logger.LogAttrs(context.Background(), slog.LevelInfo, event, attrs...)
	if r.hook != nil {
		r.hook(event, sc.phase)
	}
}

// SessionStart records the start of a run.
func (r *Recorder) SessionStart(sessionID string, keywords []string) {
	r.emit(EventSessionStart, scope{}, "log_file", r.Path(), "session_id", sessionID, "keywords", keywords)
}

// SessionEnd records the final tallies of a run.
func (r *Recorder) SessionEnd(s *model.Summary) {
	if s == nil {
		return
	}
	r.emit(EventSessionEnd, scope{},
		"status", string(s.Status),
		"total_tabs", s.Totals.Opened,
		"internal_count", s.OpenTabs,
		"closed", s.Totals.Closed,
		"pruned", s.Totals.Pruned,
		"duration_ms", s.Duration().Milliseconds(),
	)
}

// PresetVerifyStart records the start of preset verification.
func (r *Recorder) PresetVerifyStart() {
	r.emit(EventPresetVerify, scope{phase: PhaseStart})
}

// PresetVerifyOK records that a preset is in effect.
func (r *Recorder) PresetVerifyOK(kind string) {
	r.emit(EventPresetVerify, scope{phase: PhaseOK}, "type", kind)
}

// PresetVerifyRetry records a retry of a preset.
func (r *Recorder) PresetVerifyRetry(kind string, attempt int) {
	r.emit(EventPresetVerify, scope{phase: PhaseRetry}, "type", kind, "attempt", attempt)
}

// PresetVerifyFail records that a preset could not be applied.
func (r *Recorder) PresetVerifyFail(kind string) {
	r.emit(EventPresetVerify, scope{phase: PhaseFail}, "type", kind)
}

// ListScanStart records the start of a results page scan.
func (r *Recorder) ListScanStart(keyword string, page int) {
	r.emit(EventListScanStart, at(keyword, page))
}

// CandidateFound records a listing whose review count is in range.
func (r *Recorder) CandidateFound(keyword string, page int, method model.ScanMethod, reviews, idx int) {
	r.emit(EventCandidateFound, at(keyword, page), "method", string(method), "reviews", reviews, "idx", idx)
}

// OpenTabOK records a listing opened in a new tab.
func (r *Recorder) OpenTabOK(keyword string, page int, label string, reviews int) {
	r.emit(EventOpenTabOK, at(keyword, page), "label", label, "reviews", reviews)
}

// OpenTabFail records a listing that could not be opened.
func (r *Recorder) OpenTabFail(keyword string, page int, label, reason string) {
	r.emit(EventOpenTabFail, at(keyword, page), "label", label, "reason", reason)
}

// TabLimitHit records that the tab budget was exceeded.
func (r *Recorder) TabLimitHit(total, limit int) {
	r.emit(EventTabLimitHit, scope{}, "total", total, "max", limit)
}

// TabPruned records how many tabs were closed to honor the budget.
func (r *Recorder) TabPruned(count int) {
	r.emit(EventTabPruned, scope{}, "count", count)
}

// DetailCheckStart records the start of a tab classification.
func (r *Recorder) DetailCheckStart(tab int, url string) {
	r.emit(EventDetailCheckStart, onTab(tab), "url", url)
}

// InternalSignalOK records that a tab was judged internal.
func (r *Recorder) InternalSignalOK(tab int, signal string) {
	r.emit(EventInternalSignalOK, onTab(tab), "signal", signal)
}

// InternalSignalMissing records that a tab showed no internal signal.
func (r *Recorder) InternalSignalMissing(tab int) {
	r.emit(EventInternalSignalMissing, onTab(tab))
}

// TabClosed records a closed tab.
func (r *Recorder) TabClosed(tab int, reason string) {
	r.emit(EventTabClosed, onTab(tab), "reason", reason)
}

// PageMoveAttempt records an attempt to move from page to target.
func (r *Recorder) PageMoveAttempt(page, target int) {
	r.emit(EventPageMove, scope{phase: PhaseAttempt, page: page, hasPage: true}, "target", target)
}

// PageMoveOK records a successful page move.
func (r *Recorder) PageMoveOK(page int) {
	r.emit(EventPageMove, scope{phase: PhaseOK, page: page, hasPage: true})
}

// PageMoveFail records a failed page move.
func (r *Recorder) PageMoveFail(page int, reason string) {
	r.emit(EventPageMove, scope{phase: PhaseFail, page: page, hasPage: true}, "reason", reason)
}

// PageWait records a dwell.
func (r *Recorder) PageWait(d time.Duration) {
	r.emit(EventPageWait, scope{}, "ms", d.Milliseconds())
}

// CaptchaDetected records a challenge on the current page.
func (r *Recorder) CaptchaDetected(kind string) {
	r.emit(EventCaptchaDetected, scope{}, "type", kind)
}

// CaptchaSolveStart records the start of an automated solve.
func (r *Recorder) CaptchaSolveStart(provider string) {
	r.emit(EventCaptchaSolveStart, scope{}, "provider", provider)
}

// CaptchaSolveOK records an answer that cleared the challenge.
func (r *Recorder) CaptchaSolveOK(confidence float64) {
	r.emit(EventCaptchaSolveOK, scope{}, "confidence", confidence)
}

// CaptchaSolveFail records a failed solve attempt.
func (r *Recorder) CaptchaSolveFail(reason string, attempt int) {
	r.emit(EventCaptchaSolveFail, scope{}, "reason", reason, "attempt", attempt)
}

// Pause records that automation is waiting on a human.
func (r *Recorder) Pause(reason string) {
	r.emit(EventPause, scope{}, "reason", reason)
}

// Resume records that automation continues.
func (r *Recorder) Resume() {
	r.emit(EventResume, scope{})
}

// OCRAttempt records a text extraction over a screenshot.
func (r *Recorder) OCRAttempt(language string, matches int) {
	r.emit(EventOCRAttempt, scope{}, "language", language, "matches", matches)
}

// Error records a failure. Unrecoverable errors are mirrored to the
// diagnostic logger at Error level, recoverable ones at Warn.
func (r *Recorder) Error(code, reason string, recoverable bool) {
	r.emit(EventError, scope{}, "code", code, "reason", reason, "recoverable", recoverable)
	if r == nil || r.diag == nil {
		return
	}
	level := slog.LevelError
	if recoverable {
		level = slog.LevelWarn
	}
	r.diag.Log(context.Background(), level, reason, "code", code)
}

// Info records a free-form message. args are key/value pairs.
func (r *Recorder) Info(msg string, args ...any) {
	r.emit(EventInfo, scope{}, append([]any{"message", msg}, args...)...)
}
