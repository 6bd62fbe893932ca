package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/pace"
	"github.com/nao1215/deskmaster/internal/tabs"
)

// Scanner finds and opens listings on the result list.
// *scanner.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, keyword string, page int) ([]model.Candidate, error)
	Fresh(cands []model.Candidate) []model.Candidate
	Open(ctx context.Context, keyword string, page int, cands []model.Candidate) ([]model.OpenResult, error)
}

// TabManager filters and prunes detail tabs. *tabs.Manager implements it.
type TabManager interface {
	ProcessAll(ctx context.Context) (tabs.Report, error)
	EnforceLimits(ctx context.Context, current int) (int, error)
}

// TabLister reports the open tabs, list tab included.
type TabLister interface {
	Tabs(ctx context.Context) ([]model.Tab, error)
}

// CaptchaHandler clears a challenge on the current page.
// *captcha.Handler implements it.
type CaptchaHandler interface {
	Handle(ctx context.Context) (model.CaptchaResult, error)
}

// ScanStep runs the scroll passes over the result list.
type ScanStep struct {
	scanner Scanner
	logger  *slog.Logger
}

// ScanStepOption configures a ScanStep.
type ScanStepOption func(*ScanStep)

// WithScanLogger sets a custom logger for the scan step.
func WithScanLogger(logger *slog.Logger) ScanStepOption {
	return func(s *ScanStep) {
		s.logger = logger
	}
}

// NewScanStep creates a scan step.
func NewScanStep(scanner Scanner, opts ...ScanStepOption) *ScanStep {
	s := &ScanStep{scanner: scanner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return "scan"
}

// Do fills run.Candidates.
func (s *ScanStep) Do(ctx context.Context, run *model.PageRun) error {
	cands, err := s.scanner.Scan(ctx, run.Keyword, run.Page)
	run.Candidates = cands
	if run.Session != nil {
		run.Session.Totals.Candidates += len(cands)
	}
	if err != nil {
		return fmt.Errorf("scan page %d: %w", run.Page, err)
	}
	s.logger.Debug("scan finished", "keyword", run.Keyword, "page", run.Page, "candidates", len(cands))
	return nil
}

// OpenStep opens the candidates of the page not opened before, at most
// maxPerPage of them.
type OpenStep struct {
	scanner    Scanner
	rec        *dmlog.Recorder
	maxPerPage int
}

// NewOpenStep creates an open step. maxPerPage <= 0 means no cap.
func NewOpenStep(scanner Scanner, rec *dmlog.Recorder, maxPerPage int) *OpenStep {
	return &OpenStep{scanner: scanner, rec: rec, maxPerPage: maxPerPage}
}

// Name returns the step name.
func (s *OpenStep) Name() string {
	return "open"
}

// Do fills run.Opened and updates the session tab count.
func (s *OpenStep) Do(ctx context.Context, run *model.PageRun) error {
	if len(run.Candidates) == 0 {
		s.rec.Info(fmt.Sprintf("no candidates found on page %d", run.Page))
		return nil
	}
	cands := s.scanner.Fresh(run.Candidates)
	if len(cands) == 0 {
		s.rec.Info(fmt.Sprintf("every candidate on page %d was opened before", run.Page))
		return nil
	}
	if s.maxPerPage > 0 && len(cands) > s.maxPerPage {
		s.rec.Info(fmt.Sprintf("limiting %d candidates to %d per page", len(cands), s.maxPerPage))
		cands = cands[:s.maxPerPage]
	}

	opened, err := s.scanner.Open(ctx, run.Keyword, run.Page, cands)
	run.Opened = opened
	if run.Session != nil {
		ok := run.OpenedCount()
		run.Session.TabsOpened(ok)
		run.Session.Totals.OpenFailed += len(opened) - ok
	}
	return err
}

// DwellStep waits a random page dwell after opening tabs.
type DwellStep struct {
	pacer  *pace.Pacer
	rec    *dmlog.Recorder
	lo, hi time.Duration
}

// NewDwellStep creates a dwell step over the page dwell range of d.
func NewDwellStep(pacer *pace.Pacer, rec *dmlog.Recorder, d config.DwellConfig) *DwellStep {
	lo, hi := d.Page()
	return &DwellStep{pacer: pacer, rec: rec, lo: lo, hi: hi}
}

// Name returns the step name.
func (s *DwellStep) Name() string {
	return "dwell"
}

// Do sleeps unless nothing was opened on the page.
func (s *DwellStep) Do(ctx context.Context, run *model.PageRun) error {
	if run.OpenedCount() == 0 {
		return nil
	}
	d := s.pacer.Between(s.lo, s.hi)
	s.rec.PageWait(d)
	return s.pacer.Sleep(ctx, d)
}

// TabsStep closes external-mall tabs and then enforces the tab budget.
type TabsStep struct {
	manager TabManager
	lister  TabLister
	rec     *dmlog.Recorder
}

// NewTabsStep creates a tab lifecycle step.
func NewTabsStep(manager TabManager, lister TabLister, rec *dmlog.Recorder) *TabsStep {
	return &TabsStep{manager: manager, lister: lister, rec: rec}
}

// Name returns the step name.
func (s *TabsStep) Name() string {
	return "tabs"
}

// Do fills run.Processed, run.Closed, run.Verdicts and run.Pruned.
// Pages that opened nothing leave the tabs alone.
func (s *TabsStep) Do(ctx context.Context, run *model.PageRun) error {
	if run.OpenedCount() == 0 {
		return nil
	}

	report, err := s.manager.ProcessAll(ctx)
	run.Processed = report.Processed
	run.Closed = report.Closed
	for _, v := range report.Verdicts {
		v.Keyword = run.Keyword
		v.Page = run.Page
		run.Verdicts = append(run.Verdicts, v)
	}
	if run.Session != nil {
		run.Session.TabsClosed(report.Closed)
		run.Session.Totals.Processed += report.Processed
	}
	if err != nil {
		return fmt.Errorf("filter tabs: %w", err)
	}
	s.rec.Info(fmt.Sprintf("processed %d tabs, closed %d external malls", report.Processed, report.Closed))

	open, err := s.lister.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("count tabs: %w", err)
	}
	pruned, err := s.manager.EnforceLimits(ctx, len(open))
	run.Pruned = pruned
	if run.Session != nil {
		run.Session.TabsPruned(pruned)
	}
	if err != nil {
		return fmt.Errorf("enforce tab limit: %w", err)
	}
	return nil
}

// CaptchaStep clears a CAPTCHA left on the page.
type CaptchaStep struct {
	handler CaptchaHandler
}

// NewCaptchaStep creates a CAPTCHA step.
func NewCaptchaStep(handler CaptchaHandler) *CaptchaStep {
	return &CaptchaStep{handler: handler}
}

// Name returns the step name.
func (s *CaptchaStep) Name() string {
	return "captcha"
}

// Do fills run.Captcha. It returns captcha.ErrUnresolved when automation
// must not continue.
func (s *CaptchaStep) Do(ctx context.Context, run *model.PageRun) error {
	result, err := s.handler.Handle(ctx)
	run.Captcha = &result
	if run.Session != nil && result.Outcome != model.CaptchaNotPresent && result.Outcome != "" {
		run.Session.Totals.Captchas++
		if result.Outcome.Solved() {
			run.Session.Totals.CaptchasSolved++
		}
	}
	return err
}

// Deps are the collaborators of the page pipeline.
type Deps struct {
	Scanner  Scanner
	Tabs     TabManager
	Lister   TabLister
	Captcha  CaptchaHandler
	Pacer    *pace.Pacer
	Recorder *dmlog.Recorder

	// Logger receives step diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
}

// PageSteps returns the per-page steps in execution order:
// scan, open, dwell, tabs, captcha.
func PageSteps(cfg *config.Config, d Deps) []Step {
	var scanOpts []ScanStepOption
	if d.Logger != nil {
		scanOpts = append(scanOpts, WithScanLogger(d.Logger))
	}
	return []Step{
		NewScanStep(d.Scanner, scanOpts...),
		NewOpenStep(d.Scanner, d.Recorder, cfg.Chrome.MaxTabsPerPage),
		NewDwellStep(d.Pacer, d.Recorder, cfg.Dwell),
		NewTabsStep(d.Tabs, d.Lister, d.Recorder),
		NewCaptchaStep(d.Captcha),
	}
}

// DefaultPipeline creates a pipeline running PageSteps.
func DefaultPipeline(cfg *config.Config, d Deps, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(PageSteps(cfg, d)...)
	return p
}
