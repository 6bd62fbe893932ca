package navigator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/pace"
)

// Preset kinds reported in preset-verify events.
const (
	KindSorting = "sorting"
	KindDisplay = "display"
)

// NextLabel is the name of the generic next page control.
const NextLabel = "다음"

// PaginationArea is the fraction of the viewport height above which
// pagination controls are ignored.
const PaginationArea = 0.75

// ScrollStep is the distance of the jitter scroll.
const ScrollStep = 400

const (
	menuSettle   = 500 * time.Millisecond
	optionSettle = time.Second
	jitterSettle = 200 * time.Millisecond
	loadSettle   = 1500 * time.Millisecond
)

var controlRoles = []string{model.RoleLink, model.RoleButton}

// Page is the part of the browser the navigator needs.
type Page interface {
	FindAll(ctx context.Context, q browser.Query) ([]*model.Element, error)
	Rect(ctx context.Context, el *model.Element) (model.Rect, error)
	Invoke(ctx context.Context, el *model.Element) error
	Scroll(ctx context.Context, dy float64) error
	ViewportHeight(ctx context.Context) (float64, error)
}

// Navigator verifies presets and paginates.
type Navigator struct {
	page   Page
	rec    *dmlog.Recorder
	pacer  *pace.Pacer
	preset config.PresetConfig
	dwell  config.DwellConfig
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithPacer sets the source of randomness and sleeping.
func WithPacer(p *pace.Pacer) Option {
	return func(n *Navigator) {
		n.pacer = p
	}
}

// New creates a Navigator. cfg must have been validated.
func New(page Page, cfg *config.Config, rec *dmlog.Recorder, opts ...Option) *Navigator {
	n := &Navigator{
		page:   page,
		rec:    rec,
		pacer:  pace.New(),
		preset: cfg.Preset,
		dwell:  cfg.Dwell,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// VerifyPresets makes sure the list is sorted and sized as configured,
// selecting the target options through their menus when they are not.
func (n *Navigator) VerifyPresets(ctx context.Context) error {
	n.rec.PresetVerifyStart()

	sortControls := []string{n.preset.SortControl}
	if err := n.verify(ctx, KindSorting, n.preset.Sorting, sortControls, menuSettle, optionSettle); err != nil {
		return err
	}

	if n.preset.SkipDisplayCheck || n.preset.DisplayCount == "" {
		n.rec.Info("display count check skipped")
		return nil
	}
	return n.verify(ctx, KindDisplay, n.preset.DisplayCount, n.preset.DisplayControls, optionSettle, loadSettle)
}

// verify checks that target is shown, and otherwise opens the first
// control found and picks target from it, up to MaxRetry times.
func (n *Navigator) verify(ctx context.Context, kind, target string, controls []string, menuWait, pickWait time.Duration) error {
	for attempt := 1; attempt <= n.preset.MaxRetry; attempt++ {
		ok, err := n.present(ctx, target)
		if err != nil {
			return err
		}
		if ok {
			n.rec.PresetVerifyOK(kind)
			return nil
		}
		n.rec.PresetVerifyRetry(kind, attempt)
		if err := n.choose(ctx, target, controls, menuWait, pickWait); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.rec.Error(dmlog.CodePreset, fmt.Sprintf("%s: %v", kind, err), true)
		}
	}

	ok, err := n.present(ctx, target)
	if err != nil {
		return err
	}
	if ok {
		n.rec.PresetVerifyOK(kind)
		return nil
	}
	n.rec.PresetVerifyFail(kind)
	return fmt.Errorf("%w: %s %q", ErrPresetFailed, kind, target)
}

func (n *Navigator) present(ctx context.Context, pattern string) (bool, error) {
	found, err := n.page.FindAll(ctx, browser.Named(pattern))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n.rec.Error(dmlog.CodePreset, err.Error(), true)
		return false, nil
	}
	return len(found) > 0, nil
}

// choose opens the menu behind the first matching control and invokes
// the option named target.
func (n *Navigator) choose(ctx context.Context, target string, controls []string, menuWait, pickWait time.Duration) error {
	var control *model.Element
	for _, pattern := range controls {
		if pattern == "" {
			continue
		}
		found, err := n.page.FindAll(ctx, browser.Named(pattern))
		if err != nil {
			return err
		}
		if len(found) > 0 {
			control = found[0]
			n.rec.Info("preset control found", "pattern", pattern)
			break
		}
	}
	if control == nil {
		return fmt.Errorf("%w: no control for %q", browser.ErrNotFound, target)
	}
	if err := n.page.Invoke(ctx, control); err != nil {
		return err
	}
	if err := n.pacer.Sleep(ctx, menuWait); err != nil {
		return err
	}

	options, err := n.page.FindAll(ctx, browser.Named(target))
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return fmt.Errorf("%w: option %q", browser.ErrNotFound, target)
	}
	if err := n.page.Invoke(ctx, options[0]); err != nil {
		return err
	}
	return n.pacer.Sleep(ctx, pickWait)
}

// Next moves from page current to the following one. It reports false
// without error when there is no next page or the control cannot be used.
func (n *Navigator) Next(ctx context.Context, current int) (bool, error) {
	next := current + 1
	n.rec.PageMoveAttempt(current, next)

	lo, hi := n.dwell.Page()
	if n.pacer.Chance(n.dwell.LongProbability) {
		lo, hi = n.dwell.Long()
	}
	d := n.pacer.Between(lo, hi)
	n.rec.PageWait(d)
	if err := n.pacer.Sleep(ctx, d); err != nil {
		return false, err
	}

	if n.pacer.Chance(n.dwell.JitterProbability) {
		if err := n.jitter(ctx); err != nil {
			return false, err
		}
	}

	el, err := n.findNext(ctx, next)
	if errors.Is(err, ErrNoNextPage) {
		n.rec.PageMoveFail(current, "next-page-not-found")
		return false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n.rec.Error(dmlog.CodePageMove, err.Error(), true)
		n.rec.PageMoveFail(current, "next-page-lookup-failed")
		return false, nil
	}

	if err := n.page.Invoke(ctx, el); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		n.rec.Error(dmlog.CodePageMove, err.Error(), true)
		n.rec.PageMoveFail(current, "click-failed")
		return false, nil
	}
	if err := n.pacer.Sleep(ctx, loadSettle); err != nil {
		return false, err
	}
	n.rec.PageMoveOK(next)
	return true, nil
}

// jitter scrolls up and back down once.
func (n *Navigator) jitter(ctx context.Context) error {
	for _, dy := range []float64{-ScrollStep, ScrollStep} {
		if err := n.page.Scroll(ctx, dy); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.rec.Error(dmlog.CodePageMove, fmt.Sprintf("jitter scroll: %v", err), true)
			return nil
		}
		if err := n.pacer.Sleep(ctx, jitterSettle); err != nil {
			return err
		}
	}
	return nil
}

// findNext returns the control leading to page next: its page number, or
// else the generic next control. Only controls in the bottom quarter of
// the viewport or below it count.
func (n *Navigator) findNext(ctx context.Context, next int) (*model.Element, error) {
	height, err := n.page.ViewportHeight(ctx)
	if err != nil {
		return nil, err
	}
	floor := height * PaginationArea

	queries := []browser.Query{
		browser.Exact(strconv.Itoa(next), controlRoles...),
		{Name: regexp.MustCompile(regexp.QuoteMeta(NextLabel)), Roles: controlRoles},
	}
	for _, q := range queries {
		found, err := n.page.FindAll(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, el := range found {
			r, err := n.page.Rect(ctx, el)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			if !r.Empty() && r.Top > floor {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: page %d", ErrNoNextPage, next)
}
