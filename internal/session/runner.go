package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/captcha"
	"github.com/nao1215/deskmaster/internal/config"
	"github.com/nao1215/deskmaster/internal/environment"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/navigator"
	"github.com/nao1215/deskmaster/internal/pace"
	"github.com/nao1215/deskmaster/internal/pipeline"
	"github.com/nao1215/deskmaster/internal/scanner"
	"github.com/nao1215/deskmaster/internal/tabs"
)

// Reasons a keyword ended before its last page.
const (
	StopCaptcha    = "captcha-unresolved"
	StopNoNextPage = "no-next-page"
	StopPageError  = "page-error"
)

// Browser is everything the runner drives.
type Browser interface {
	browser.Browser
	browser.Capturer
	browser.Window
}

// Tools are the external vision and OCR tools.
// *tool.Client implements it.
type Tools interface {
	captcha.Solver
	scanner.TextExtractor
	io.Closer
}

// Store persists session history.
type Store interface {
	StartSession(ctx context.Context, s *model.Session, keywords []string) error
	SavePage(ctx context.Context, sessionID string, run *model.PageRun) error
	FinishSession(ctx context.Context, summary *model.Summary) error
}

// Runner runs sessions against one browser.
type Runner struct {
	b      Browser
	cfg    *config.Config
	rec    *dmlog.Recorder
	logger *slog.Logger
	pacer  *pace.Pacer
	store  Store
	tools  Tools
	gate   captcha.Gate
	seen   *scanner.Seen
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithPacer sets the pacer shared by every stage.
func WithPacer(p *pace.Pacer) Option {
	return func(r *Runner) {
		r.pacer = p
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithStore records the session history in s.
func WithStore(s Store) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithTools enables OCR fallback and automated CAPTCHA solving.
func WithTools(t Tools) Option {
	return func(r *Runner) {
		r.tools = t
	}
}

// WithGate sets where the manual CAPTCHA pause waits.
func WithGate(g captcha.Gate) Option {
	return func(r *Runner) {
		r.gate = g
	}
}

// WithSeen shares the opened-listing memory across runs.
func WithSeen(s *scanner.Seen) Option {
	return func(r *Runner) {
		r.seen = s
	}
}

// WithClock overrides the session clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a Runner. cfg must be valid.
func New(b Browser, cfg *config.Config, rec *dmlog.Recorder, opts ...Option) *Runner {
	r := &Runner{
		b:      b,
		cfg:    cfg,
		rec:    rec,
		logger: slog.Default(),
		pacer:  pace.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.seen == nil {
		r.seen = scanner.NewSeen(scanner.DefaultSeenSize)
	}
	return r
}

// stages are the collaborators of one run.
type stages struct {
	nav  *navigator.Navigator
	page *pipeline.Pipeline
}

func (r *Runner) build() stages {
	scanOpts := []scanner.Option{scanner.WithPacer(r.pacer), scanner.WithSeen(r.seen)}
	captchaOpts := []captcha.Option{captcha.WithPacer(r.pacer)}
	if r.tools != nil {
		scanOpts = append(scanOpts, scanner.WithOCR(r.b, r.tools))
		captchaOpts = append(captchaOpts, captcha.WithSolver(r.b, r.tools))
	}
	if r.gate != nil {
		captchaOpts = append(captchaOpts, captcha.WithGate(r.gate))
	}

	deps := pipeline.Deps{
		Scanner:  scanner.New(r.b, r.cfg, r.rec, scanOpts...),
		Tabs:     tabs.New(r.b, r.cfg, r.rec, tabs.WithPacer(r.pacer)),
		Lister:   r.b,
		Captcha:  captcha.New(r.b, r.cfg, r.rec, captchaOpts...),
		Pacer:    r.pacer,
		Recorder: r.rec,
		Logger:   r.logger,
	}
	// A failed step must not skip the CAPTCHA check at the end of the page.
	page := pipeline.DefaultPipeline(r.cfg, deps,
		pipeline.WithLogger(r.logger),
		pipeline.WithContinueOnError(true),
	)
	return stages{
		nav:  navigator.New(r.b, r.cfg, r.rec, navigator.WithPacer(r.pacer)),
		page: page,
	}
}

// Run processes keywords in order and returns the session summary.
// Cancelling ctx ends the run cleanly: the summary is still produced and
// the returned error is nil. Environment and preset failures abort the
// run before any tab is opened.
func (r *Runner) Run(ctx context.Context, keywords []string) (*model.Summary, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	defer func() {
		if p := recover(); p != nil {
			r.rec.Error(dmlog.CodePanic, fmt.Sprint(p), false)
			if r.tools != nil {
				_ = r.tools.Close()
			}
			panic(p)
		}
	}()

	sess := model.NewSession(r.now())
	r.rec.SessionStart(sess.ID, keywords)
	r.logger.Info("session started", "id", sess.ID, "keywords", keywords)
	if r.store != nil {
		if err := r.store.StartSession(ctx, sess, keywords); err != nil {
			r.rec.Error(dmlog.CodeDatabase, err.Error(), true)
		}
	}

	results, status, runErr := r.run(ctx, sess, keywords)

	summary := model.NewSummary(sess, results, status, r.now())
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	summary.LogFile = r.rec.Path()
	summary.ArtifactsDir = r.cfg.ArtifactsDir()
	r.rec.SessionEnd(summary)

	if r.store != nil {
		if err := r.store.FinishSession(context.WithoutCancel(ctx), summary); err != nil {
			r.rec.Error(dmlog.CodeDatabase, err.Error(), true)
		}
	}
	r.logger.Info("session finished", "id", sess.ID, "status", status, "open_tabs", summary.OpenTabs)
	return summary, runErr
}

func (r *Runner) run(ctx context.Context, sess *model.Session, keywords []string) ([]model.KeywordResult, model.Status, error) {
	if err := environment.Verify(ctx, r.b, r.cfg.Display, r.rec); err != nil {
		if ctx.Err() != nil {
			return nil, model.StatusInterrupted, nil
		}
		return nil, model.StatusFailed, err
	}

	st := r.build()
	if err := st.nav.VerifyPresets(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, model.StatusInterrupted, nil
		}
		r.rec.Error(dmlog.CodePreset, err.Error(), false)
		return nil, model.StatusAborted, err
	}

	results := make([]model.KeywordResult, 0, len(keywords))
	for _, kw := range keywords {
		kr, err := r.runKeyword(ctx, st, sess, kw)
		results = append(results, kr)
		if err != nil {
			if ctx.Err() != nil {
				r.rec.Info("user interrupted, stopping")
				return results, model.StatusInterrupted, nil
			}
			return results, model.StatusFailed, err
		}
	}
	return results, model.StatusCompleted, nil
}

func (r *Runner) runKeyword(ctx context.Context, st stages, sess *model.Session, keyword string) (kr model.KeywordResult, err error) {
	sess.StartKeyword(keyword)
	r.rec.Info("starting keyword: " + keyword)

	before := sess.Totals
	kr = model.KeywordResult{Keyword: keyword}
	defer func() {
		kr.Opened = sess.Totals.Opened - before.Opened
		kr.Closed = sess.Totals.Closed - before.Closed
		kr.Pruned = sess.Totals.Pruned - before.Pruned
		r.rec.Info(fmt.Sprintf("completed keyword: %s, opened %d tabs", keyword, kr.Opened))
	}()

	maxPages := r.cfg.ListScan.MaxPagesPerKeyword
	for page := 1; page <= maxPages; page++ {
		sess.Page = page
		r.rec.Info(fmt.Sprintf("processing page %d/%d", page, maxPages))

		run := model.NewPageRun(sess)
		err = st.page.Execute(ctx, run)
		kr.Pages++
		sess.Totals.Pages++
		r.savePage(ctx, sess.ID, run)

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return kr, ctx.Err()
			case errors.Is(err, captcha.ErrUnresolved):
				r.rec.Error(dmlog.CodeCaptcha, "CAPTCHA not solved, stopping keyword", true)
				kr.StopReason = StopCaptcha
				return kr, nil
			default:
				r.rec.Error(dmlog.CodeScanElement, fmt.Sprintf("page %d: %v", page, err), true)
				kr.StopReason = StopPageError
				return kr, nil
			}
		}

		if page == maxPages {
			break
		}
		var ok bool
		ok, err = st.nav.Next(ctx, page)
		if err != nil {
			return kr, err
		}
		if !ok {
			r.rec.Info("no more pages, stopping")
			kr.StopReason = StopNoNextPage
			break
		}
	}
	return kr, nil
}

func (r *Runner) savePage(ctx context.Context, sessionID string, run *model.PageRun) {
	if r.store == nil {
		return
	}
	if err := r.store.SavePage(context.WithoutCancel(ctx), sessionID, run); err != nil {
		r.rec.Error(dmlog.CodeDatabase, err.Error(), true)
	}
}
