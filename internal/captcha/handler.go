package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/pace"
	"github.com/nao1215/deskmaster/internal/tool"
)

// Kind is the challenge kind reported on detection. Only text challenges
// are recognized.
const Kind = "text"

// Provider names the solver in captcha-solve-start events.
const Provider = "vision"

// PauseReason is reported when the run waits for a human.
const PauseReason = "captcha-manual-solve-required"

const (
	inputSettle  = 500 * time.Millisecond
	submitSettle = time.Second
	verifyWait   = time.Second
)

var (
	inputRoles  = []string{model.RoleTextField, "searchbox"}
	submitRoles = []string{model.RoleButton, model.RoleLink}
)

// Page is the part of the browser the handler needs.
type Page interface {
	FindAll(ctx context.Context, q browser.Query) ([]*model.Element, error)
	Rect(ctx context.Context, el *model.Element) (model.Rect, error)
	Invoke(ctx context.Context, el *model.Element) error
	SetValue(ctx context.Context, el *model.Element, value string) error
}

// Solver reads a challenge image.
type Solver interface {
	SolveCaptcha(ctx context.Context, imagePath string) (tool.Solution, error)
}

// Handler runs the challenge state machine:
// not present, or detected, then auto solving, then solved or a manual
// pause followed by a final check.
type Handler struct {
	page     Page
	rec      *dmlog.Recorder
	pacer    *pace.Pacer
	capturer browser.Capturer
	solver   Solver
	gate     Gate

	cfg          config.CaptchaConfig
	artifactsDir string
}

// Option configures a Handler.
type Option func(*Handler)

// WithPacer sets the source of randomness and sleeping.
func WithPacer(p *pace.Pacer) Option {
	return func(h *Handler) {
		h.pacer = p
	}
}

// WithSolver enables automatic solving with screenshots from c.
func WithSolver(c browser.Capturer, s Solver) Option {
	return func(h *Handler) {
		h.capturer = c
		h.solver = s
	}
}

// WithGate sets where the handler waits for a human.
// Without a gate, a challenge that automatic solving cannot clear is
// reported unresolved.
func WithGate(g Gate) Option {
	return func(h *Handler) {
		h.gate = g
	}
}

// New creates a Handler. cfg must have been validated.
func New(page Page, cfg *config.Config, rec *dmlog.Recorder, opts ...Option) *Handler {
	h := &Handler{
		page:         page,
		rec:          rec,
		pacer:        pace.New(),
		cfg:          cfg.Captcha,
		artifactsDir: cfg.ArtifactsDir(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle clears a challenge shown on the active tab, if any.
// It returns ErrUnresolved when the challenge is still there at the end.
func (h *Handler) Handle(ctx context.Context) (model.CaptchaResult, error) {
	marker, err := h.detect(ctx)
	if err != nil {
		return model.CaptchaResult{}, err
	}
	if marker == nil {
		return model.CaptchaResult{Outcome: model.CaptchaNotPresent}, nil
	}
	h.rec.CaptchaDetected(Kind)
	h.rec.Info("captcha detected", "marker", marker.Name)

	var result model.CaptchaResult
	if h.cfg.AutoSolver.Enabled && h.solver != nil && h.capturer != nil {
		solved, err := h.autoSolve(ctx, &result)
		if err != nil {
			return result, err
		}
		if solved {
			result.Outcome = model.CaptchaAutoSolved
			return result, nil
		}
	}
	return h.manual(ctx, result)
}

// autoSolve tries the vision tool up to MaxAttempts times.
func (h *Handler) autoSolve(ctx context.Context, result *model.CaptchaResult) (bool, error) {
	attempts := h.cfg.AutoSolver.MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		result.Attempts = attempt

		ok, err := h.attempt(ctx, attempt, result)
		if err != nil || ok {
			return ok, err
		}
		if attempt < attempts {
			lo, hi := h.cfg.AutoSolver.Backoff()
			if _, err := h.pacer.Wait(ctx, lo, hi); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func (h *Handler) attempt(ctx context.Context, attempt int, result *model.CaptchaResult) (bool, error) {
	path, err := h.capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		h.rec.Error(dmlog.CodeScreenshot, err.Error(), true)
		h.rec.CaptchaSolveFail("screenshot-failed", attempt)
		return false, nil
	}

	h.rec.CaptchaSolveStart(Provider)
	sol, err := h.solver.SolveCaptcha(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		h.rec.Error(dmlog.CodeCaptchaTool, err.Error(), true)
		h.rec.CaptchaSolveFail(err.Error(), attempt)
		return false, nil
	}
	if sol.Confidence < h.cfg.MinConfidence {
		h.rec.CaptchaSolveFail("low-confidence", attempt)
		return false, nil
	}
	result.Confidence = sol.Confidence

	if err := h.enter(ctx, sol.Answer); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		h.rec.Error(dmlog.CodeCaptchaTool, err.Error(), true)
		h.rec.CaptchaSolveFail("answer-entry-failed", attempt)
		return false, nil
	}
	solved, err := h.verify(ctx)
	if err != nil {
		return false, err
	}
	if !solved {
		h.rec.CaptchaSolveFail("still-present", attempt)
		return false, nil
	}
	h.rec.CaptchaSolveOK(sol.Confidence)
	return true, nil
}

// manual waits at the gate and checks the page once more.
func (h *Handler) manual(ctx context.Context, result model.CaptchaResult) (model.CaptchaResult, error) {
	result.Outcome = model.CaptchaUnresolved
	if h.gate == nil {
		return result, fmt.Errorf("%w: no one to hand over to", ErrUnresolved)
	}

	h.rec.Pause(PauseReason)
	if err := h.gate.Wait(ctx, PauseReason); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("%w: %w", ErrUnresolved, err)
	}
	h.rec.Resume()

	solved, err := h.verify(ctx)
	if err != nil {
		return result, err
	}
	if !solved {
		return result, ErrUnresolved
	}
	result.Outcome = model.CaptchaManuallySolved
	return result, nil
}

// detect returns the first element naming a challenge, or nil.
// Lookup failures count as no challenge.
func (h *Handler) detect(ctx context.Context) (*model.Element, error) {
	for _, kw := range h.cfg.Keywords {
		found, err := h.page.FindAll(ctx, browser.Named("(?i)"+kw))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.rec.Error(dmlog.CodeCaptchaTool, fmt.Sprintf("detect: %v", err), true)
			return nil, nil
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}
	return nil, nil
}

// verify waits for the page to settle and reports whether the challenge
// is gone.
func (h *Handler) verify(ctx context.Context) (bool, error) {
	if err := h.pacer.Sleep(ctx, verifyWait); err != nil {
		return false, err
	}
	marker, err := h.detect(ctx)
	if err != nil {
		return false, err
	}
	return marker == nil, nil
}

// capture saves the challenge region, or the viewport when the region
// cannot be located.
func (h *Handler) capture(ctx context.Context) (string, error) {
	marker, err := h.detect(ctx)
	if err != nil {
		return "", err
	}
	if marker != nil {
		if r, err := h.page.Rect(ctx, marker); err == nil && !r.Empty() {
			return browser.SaveCapture(ctx, h.capturer, &r, h.artifactsDir, "captcha")
		}
	}
	return browser.SaveCapture(ctx, h.capturer, nil, h.artifactsDir, "viewport")
}

// enter types answer into the challenge input and submits it.
func (h *Handler) enter(ctx context.Context, answer string) error {
	input, err := h.first(ctx, h.cfg.InputPatterns, inputRoles)
	if err != nil {
		return fmt.Errorf("input field: %w", err)
	}
	if err := h.page.SetValue(ctx, input, answer); err != nil {
		return err
	}
	if err := h.pacer.Sleep(ctx, inputSettle); err != nil {
		return err
	}

	submit, err := h.first(ctx, h.cfg.SubmitPatterns, submitRoles)
	if err != nil {
		return fmt.Errorf("submit control: %w", err)
	}
	if err := h.page.Invoke(ctx, submit); err != nil {
		return err
	}
	return h.pacer.Sleep(ctx, submitSettle)
}

// first returns the first element matching one of patterns, tried in order.
func (h *Handler) first(ctx context.Context, patterns, roles []string) (*model.Element, error) {
	for _, p := range patterns {
		found, err := h.page.FindAll(ctx, browser.Named("(?i)"+p, roles...))
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}
	return nil, browser.ErrNotFound
}
