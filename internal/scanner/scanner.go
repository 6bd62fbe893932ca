package scanner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/pace"
)

// ScrollStep is the pixel distance of one scroll notch.
const ScrollStep = 400

// Delays around opening a tab.
const (
	openSettle    = 500 * time.Millisecond
	openJitterMin = 100 * time.Millisecond
	openJitterMax = 300 * time.Millisecond
)

// Page is the part of the browser the scanner needs.
type Page interface {
	browser.Finder
	Scroll(ctx context.Context, dy float64) error
	OpenInNewTab(ctx context.Context, el *model.Element) error
}

// TextExtractor runs OCR over an image file.
type TextExtractor interface {
	ExtractText(ctx context.Context, path, language string) (string, error)
}

// Scanner scans result pages and opens qualifying listings.
type Scanner struct {
	page     Page
	rec      *dmlog.Recorder
	pacer    *pace.Pacer
	seen     *Seen
	capturer browser.Capturer
	ocr      TextExtractor

	review       *regexp.Regexp
	reviewRange  model.ReviewRange
	passesMin    int
	passesMax    int
	parentDepth  int
	viewMin      time.Duration
	viewMax      time.Duration
	ocrLanguage  string
	artifactsDir string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPacer sets the source of randomness and sleeping.
func WithPacer(p *pace.Pacer) Option {
	return func(s *Scanner) {
		s.pacer = p
	}
}

// WithSeen enables skipping listings opened earlier in the session.
func WithSeen(seen *Seen) Option {
	return func(s *Scanner) {
		s.seen = seen
	}
}

// WithOCR enables the OCR fallback.
func WithOCR(c browser.Capturer, ocr TextExtractor) Option {
	return func(s *Scanner) {
		s.capturer = c
		s.ocr = ocr
	}
}

// New creates a Scanner. cfg must have been validated.
func New(page Page, cfg *config.Config, rec *dmlog.Recorder, opts ...Option) *Scanner {
	viewMin, viewMax := cfg.Dwell.View()
	s := &Scanner{
		page:         page,
		rec:          rec,
		pacer:        pace.New(),
		review:       regexp.MustCompile(cfg.ListScan.ReviewPattern),
		reviewRange:  cfg.ReviewRange,
		passesMin:    cfg.ListScan.ScrollPassesMin,
		passesMax:    cfg.ListScan.ScrollPassesMax,
		parentDepth:  cfg.ListScan.ParentDepth,
		viewMin:      viewMin,
		viewMax:      viewMax,
		ocrLanguage:  cfg.OCR.Language,
		artifactsDir: cfg.ArtifactsDir(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// found is one review label resolved to a listing.
type found struct {
	target  *model.Element
	reviews int
}

// Scan makes a random number of scroll passes over the current page and
// returns the in-range listings, each listed once, in discovery order.
// Only context errors are returned; element and provider failures are
// logged and skipped.
func (s *Scanner) Scan(ctx context.Context, keyword string, page int) ([]model.Candidate, error) {
	s.rec.ListScanStart(keyword, page)

	passes := s.pacer.IntBetween(s.passesMin, s.passesMax)
	seen := map[string]bool{}
	var out []model.Candidate

	for pass := range passes {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		results, err := s.scanTree(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.rec.Error(dmlog.CodeScanElement, err.Error(), true)
		}
		if len(results) == 0 {
			s.rec.Info("accessibility scan found nothing, falling back to OCR", "pass", pass)
			s.scanOCR(ctx)
		}

		for idx, r := range results {
			if !s.reviewRange.Contains(r.reviews) || seen[r.target.ID] {
				continue
			}
			seen[r.target.ID] = true
			out = append(out, model.Candidate{
				Target:  r.target,
				Reviews: r.reviews,
				Method:  model.ScanMethodAccessibility,
				Pass:    pass,
			})
			s.rec.CandidateFound(keyword, page, model.ScanMethodAccessibility, r.reviews, idx)
		}

		if pass < passes-1 {
			if err := s.scroll(ctx); err != nil {
				return out, err
			}
		}
	}

	s.rec.Info("scan complete", "passes", passes, "candidates", len(out))
	return out, nil
}

// scroll moves down one to three notches and lets the page settle.
func (s *Scanner) scroll(ctx context.Context) error {
	dy := float64(s.pacer.IntBetween(1, 3) * ScrollStep)
	if err := s.page.Scroll(ctx, dy); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.rec.Error(dmlog.CodeScanElement, fmt.Sprintf("scroll: %v", err), true)
	}
	_, err := s.pacer.Wait(ctx, s.viewMin, s.viewMax)
	return err
}

// scanTree resolves every review label in the accessibility tree.
func (s *Scanner) scanTree(ctx context.Context) ([]found, error) {
	labels, err := s.page.FindAll(ctx, browser.Query{Name: s.review})
	if err != nil {
		return nil, err
	}

	var out []found
	for _, el := range labels {
		n, ok := ExtractReviewCount(s.review, el.Name)
		if !ok {
			continue
		}
		target, err := s.clickable(ctx, el)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.rec.Error(dmlog.CodeScanElement, err.Error(), true)
			continue
		}
		if target == nil {
			continue
		}
		out = append(out, found{target: target, reviews: n})
	}
	return out, nil
}

// clickable finds the element to invoke for the listing holding label.
// It returns nil without error when there is none.
func (s *Scanner) clickable(ctx context.Context, label *model.Element) (*model.Element, error) {
	if label.Clickable() {
		return label, nil
	}

	cur := label
	for range s.parentDepth {
		parent, err := s.page.Parent(ctx, cur)
		if errors.Is(err, browser.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if parent.Clickable() {
			return parent, nil
		}
		cur = parent
	}

	parent, err := s.page.Parent(ctx, label)
	if errors.Is(err, browser.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	siblings, err := s.page.Children(ctx, parent)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		if sib.ID != label.ID && sib.Clickable() {
			return sib, nil
		}
	}
	return nil, nil
}

// scanOCR captures the viewport and logs the review counts OCR reads.
func (s *Scanner) scanOCR(ctx context.Context) {
	if s.capturer == nil || s.ocr == nil {
		return
	}

	path, err := browser.SaveCapture(ctx, s.capturer, nil, s.artifactsDir, "viewport")
	if err != nil {
		s.rec.Error(dmlog.CodeScreenshot, err.Error(), true)
		return
	}
	text, err := s.ocr.ExtractText(ctx, path, s.ocrLanguage)
	if err != nil {
		s.rec.Error(dmlog.CodeOCR, err.Error(), true)
		return
	}

	counts := ReviewCounts(s.review, text)
	s.rec.OCRAttempt(s.ocrLanguage, len(counts))
	for _, n := range counts {
		s.rec.Info("ocr review count without clickable element", "reviews", n, "in_range", s.reviewRange.Contains(n))
	}
}

// Fresh returns the candidates not yet opened in this session, in order.
func (s *Scanner) Fresh(cands []model.Candidate) []model.Candidate {
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if s.seen.Has(c) {
			s.rec.Info("listing already opened in this session", "label", labelOf(c), "reviews", c.Reviews)
			continue
		}
		out = append(out, c)
	}
	return out
}

// Open opens each candidate in a background tab, pausing briefly between
// opens. Candidates already opened earlier in the session are skipped;
// failed opens may be retried later.
func (s *Scanner) Open(ctx context.Context, keyword string, page int, cands []model.Candidate) ([]model.OpenResult, error) {
	results := make([]model.OpenResult, 0, len(cands))
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		label := labelOf(c)
		if s.seen.Has(c) {
			s.rec.Info("listing already opened in this session", "label", label, "reviews", c.Reviews)
			continue
		}

		if err := s.page.OpenInNewTab(ctx, c.Target); err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			s.rec.Error(dmlog.CodeOpenTab, err.Error(), true)
			s.rec.OpenTabFail(keyword, page, label, err.Error())
			results = append(results, model.OpenResult{Label: label, Reviews: c.Reviews})
		} else {
			s.seen.Add(c)
			s.rec.OpenTabOK(keyword, page, label, c.Reviews)
			results = append(results, model.OpenResult{Label: label, Reviews: c.Reviews, OK: true})
			if err := s.pacer.Sleep(ctx, openSettle); err != nil {
				return results, err
			}
		}

		if _, err := s.pacer.Wait(ctx, openJitterMin, openJitterMax); err != nil {
			return results, err
		}
	}
	return results, nil
}

func labelOf(c model.Candidate) string {
	if c.Target == nil {
		return ""
	}
	if c.Target.Name != "" {
		return c.Target.Name
	}
	return "element_" + c.Target.ID
}
