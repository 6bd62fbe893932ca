package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/pace"
	"github.com/nao1215/deskmaster/internal/tabs"
)

type fakeScanner struct {
	cands   []model.Candidate
	scanErr error
	failIDs []string
	seenIDs []string
	opened  []model.Candidate
}

func (f *fakeScanner) Fresh(cands []model.Candidate) []model.Candidate {
	var out []model.Candidate
	for _, c := range cands {
		if !slices.Contains(f.seenIDs, c.Target.ID) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeScanner) Scan(_ context.Context, _ string, _ int) ([]model.Candidate, error) {
	return f.cands, f.scanErr
}

func (f *fakeScanner) Open(_ context.Context, _ string, _ int, cands []model.Candidate) ([]model.OpenResult, error) {
	f.opened = append(f.opened, cands...)
	out := make([]model.OpenResult, 0, len(cands))
	for _, c := range cands {
		out = append(out, model.OpenResult{
			Label:   c.Target.Name,
			Reviews: c.Reviews,
			OK:      !slices.Contains(f.failIDs, c.Target.ID),
		})
	}
	return out, nil
}

type fakeTabs struct {
	report    tabs.Report
	err       error
	pruned    int
	limitArg  int
	processed bool
}

func (f *fakeTabs) ProcessAll(_ context.Context) (tabs.Report, error) {
	f.processed = true
	return f.report, f.err
}

func (f *fakeTabs) EnforceLimits(_ context.Context, current int) (int, error) {
	f.limitArg = current
	return f.pruned, nil
}

type fakeLister struct {
	n int
}

func (f fakeLister) Tabs(_ context.Context) ([]model.Tab, error) {
	return make([]model.Tab, f.n), nil
}

type fakeCaptcha struct {
	result model.CaptchaResult
	err    error
}

func (f fakeCaptcha) Handle(_ context.Context) (model.CaptchaResult, error) {
	return f.result, f.err
}

func candidates(ids ...string) []model.Candidate {
	out := make([]model.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, model.Candidate{
			Target:  &model.Element{ID: id, Name: "listing " + id, Role: model.RoleLink},
			Reviews: 100 + i,
		})
	}
	return out
}

// TestScanStep tests candidate collection.
func TestScanStep(t *testing.T) {
	t.Parallel()

	t.Run("fills candidates and totals", func(t *testing.T) {
		t.Parallel()

		run := newRun()
		step := NewScanStep(&fakeScanner{cands: candidates("a", "b")})
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Candidates) != 2 {
			t.Errorf("expected 2 candidates, got %d", len(run.Candidates))
		}
		if run.Session.Totals.Candidates != 2 {
			t.Errorf("expected totals 2, got %d", run.Session.Totals.Candidates)
		}
		if step.Name() != "scan" {
			t.Errorf("unexpected name %q", step.Name())
		}
	})

	t.Run("wraps scanner errors", func(t *testing.T) {
		t.Parallel()

		run := newRun()
		step := NewScanStep(&fakeScanner{scanErr: context.Canceled})
		err := step.Do(context.Background(), run)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestOpenStep tests the per-page cap and tab accounting.
func TestOpenStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ids        []string
		failIDs    []string
		seenIDs    []string
		maxPerPage int
		wantTried  int
		wantOpen   int
		wantFailed int
	}{
		{name: "opens all under cap", ids: []string{"a", "b"}, maxPerPage: 5, wantTried: 2, wantOpen: 2},
		{name: "caps to max per page", ids: []string{"a", "b", "c", "d"}, maxPerPage: 3, wantTried: 3, wantOpen: 3},
		{name: "counts failures", ids: []string{"a", "b", "c"}, failIDs: []string{"b"}, maxPerPage: 5, wantTried: 3, wantOpen: 2, wantFailed: 1},
		{name: "zero cap opens everything", ids: []string{"a", "b", "c"}, wantTried: 3, wantOpen: 3},
		{name: "nothing to open", maxPerPage: 5},
		{name: "seen listings do not use the cap", ids: []string{"a", "b", "c", "d", "e"}, seenIDs: []string{"a", "b"}, maxPerPage: 3, wantTried: 3, wantOpen: 3},
		{name: "all listings seen", ids: []string{"a", "b"}, seenIDs: []string{"a", "b"}, maxPerPage: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sc := &fakeScanner{failIDs: tt.failIDs, seenIDs: tt.seenIDs}
			run := newRun()
			run.Candidates = candidates(tt.ids...)

			step := NewOpenStep(sc, dmlog.Discard(), tt.maxPerPage)
			if err := step.Do(context.Background(), run); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sc.opened) != tt.wantTried {
				t.Errorf("tried %d opens, want %d", len(sc.opened), tt.wantTried)
			}
			for _, c := range sc.opened {
				if slices.Contains(tt.seenIDs, c.Target.ID) {
					t.Errorf("reopened seen listing %s", c.Target.ID)
				}
			}
			if run.Session.OpenTabs != tt.wantOpen {
				t.Errorf("OpenTabs = %d, want %d", run.Session.OpenTabs, tt.wantOpen)
			}
			if run.Session.Totals.OpenFailed != tt.wantFailed {
				t.Errorf("OpenFailed = %d, want %d", run.Session.Totals.OpenFailed, tt.wantFailed)
			}
		})
	}
}

// TestDwellStep tests that the dwell only happens after opening tabs.
func TestDwellStep(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	lo, hi := cfg.Dwell.Page()

	t.Run("sleeps within the page dwell", func(t *testing.T) {
		t.Parallel()

		p := pace.Instant(1)
		run := newRun()
		run.Opened = []model.OpenResult{{OK: true}}

		if err := NewDwellStep(p, dmlog.Discard(), cfg.Dwell).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Slept() < lo || p.Slept() > hi {
			t.Errorf("slept %v, want within [%v, %v]", p.Slept(), lo, hi)
		}
	})

	t.Run("skips when nothing opened", func(t *testing.T) {
		t.Parallel()

		p := pace.Instant(1)
		run := newRun()
		run.Opened = []model.OpenResult{{OK: false}}

		if err := NewDwellStep(p, dmlog.Discard(), cfg.Dwell).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Slept() != 0 {
			t.Errorf("expected no sleep, got %v", p.Slept())
		}
	})
}

// TestTabsStep tests filtering followed by pruning.
func TestTabsStep(t *testing.T) {
	t.Parallel()

	t.Run("records verdicts and prunes with actual tab count", func(t *testing.T) {
		t.Parallel()

		mgr := &fakeTabs{
			report: tabs.Report{
				Processed: 3,
				Closed:    1,
				Verdicts: []model.TabVerdict{
					{Tab: 3, Verdict: model.VerdictExternal, Closed: true},
					{Tab: 2, Verdict: model.VerdictInternal},
					{Tab: 1, Verdict: model.VerdictInternal},
				},
			},
			pruned: 1,
		}
		run := newRun()
		run.Opened = []model.OpenResult{{OK: true}, {OK: true}, {OK: true}}
		run.Session.TabsOpened(3)

		step := NewTabsStep(mgr, fakeLister{n: 3}, dmlog.Discard())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if mgr.limitArg != 3 {
			t.Errorf("EnforceLimits got %d, want 3", mgr.limitArg)
		}
		if run.Processed != 3 || run.Closed != 1 || run.Pruned != 1 {
			t.Errorf("unexpected counts processed=%d closed=%d pruned=%d", run.Processed, run.Closed, run.Pruned)
		}
		for _, v := range run.Verdicts {
			if v.Keyword != "tent" || v.Page != 1 {
				t.Errorf("verdict not scoped to page: %+v", v)
			}
		}
		if run.Session.OpenTabs != 1 {
			t.Errorf("OpenTabs = %d, want 1", run.Session.OpenTabs)
		}
		if run.Session.Totals.Processed != 3 {
			t.Errorf("Totals.Processed = %d, want 3", run.Session.Totals.Processed)
		}
	})

	t.Run("skips when nothing opened", func(t *testing.T) {
		t.Parallel()

		mgr := &fakeTabs{}
		if err := NewTabsStep(mgr, fakeLister{n: 1}, dmlog.Discard()).Do(context.Background(), newRun()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mgr.processed {
			t.Error("expected ProcessAll not to run")
		}
	})

	t.Run("returns filter errors", func(t *testing.T) {
		t.Parallel()

		mgr := &fakeTabs{err: tabs.ErrNoTab}
		run := newRun()
		run.Opened = []model.OpenResult{{OK: true}}

		err := NewTabsStep(mgr, fakeLister{n: 2}, dmlog.Discard()).Do(context.Background(), run)
		if !errors.Is(err, tabs.ErrNoTab) {
			t.Errorf("expected ErrNoTab, got %v", err)
		}
	})
}

// TestCaptchaStep tests CAPTCHA accounting.
func TestCaptchaStep(t *testing.T) {
	t.Parallel()

	errUnresolved := errors.New("unresolved")

	tests := []struct {
		name       string
		result     model.CaptchaResult
		err        error
		wantSeen   int
		wantSolved int
	}{
		{name: "no challenge", result: model.CaptchaResult{Outcome: model.CaptchaNotPresent}},
		{name: "auto solved", result: model.CaptchaResult{Outcome: model.CaptchaAutoSolved, Attempts: 1}, wantSeen: 1, wantSolved: 1},
		{name: "manually solved", result: model.CaptchaResult{Outcome: model.CaptchaManuallySolved}, wantSeen: 1, wantSolved: 1},
		{name: "unresolved", result: model.CaptchaResult{Outcome: model.CaptchaUnresolved}, err: errUnresolved, wantSeen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run := newRun()
			err := NewCaptchaStep(fakeCaptcha{result: tt.result, err: tt.err}).Do(context.Background(), run)
			if !errors.Is(err, tt.err) {
				t.Errorf("got error %v, want %v", err, tt.err)
			}
			if run.Captcha == nil || run.Captcha.Outcome != tt.result.Outcome {
				t.Errorf("unexpected captcha result %+v", run.Captcha)
			}
			if run.Session.Totals.Captchas != tt.wantSeen || run.Session.Totals.CaptchasSolved != tt.wantSolved {
				t.Errorf("totals %+v", run.Session.Totals)
			}
		})
	}
}

// TestDefaultPipeline tests step order.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	p := DefaultPipeline(config.NewConfig(), Deps{
		Scanner:  &fakeScanner{},
		Tabs:     &fakeTabs{},
		Lister:   fakeLister{n: 1},
		Captcha:  fakeCaptcha{result: model.CaptchaResult{Outcome: model.CaptchaNotPresent}},
		Pacer:    pace.Instant(1),
		Recorder: dmlog.Discard(),
	})

	want := []string{"scan", "open", "dwell", "tabs", "captcha"}
	if !slices.Equal(p.StepNames(), want) {
		t.Errorf("StepNames() = %v, want %v", p.StepNames(), want)
	}

	run := newRun()
	if err := p.Execute(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(run.Steps, want) {
		t.Errorf("run.Steps = %v, want %v", run.Steps, want)
	}
}

// TestDefaultPipelineContinuesToCaptcha tests that a failing step does not
// skip the CAPTCHA check.
func TestDefaultPipelineContinuesToCaptcha(t *testing.T) {
	t.Parallel()

	errUnresolved := errors.New("unresolved")
	p := DefaultPipeline(config.NewConfig(), Deps{
		Scanner:  &fakeScanner{cands: candidates("a")},
		Tabs:     &fakeTabs{err: tabs.ErrNoTab},
		Lister:   fakeLister{n: 2},
		Captcha:  fakeCaptcha{result: model.CaptchaResult{Outcome: model.CaptchaUnresolved}, err: errUnresolved},
		Pacer:    pace.Instant(1),
		Recorder: dmlog.Discard(),
	}, WithContinueOnError(true))

	run := newRun()
	err := p.Execute(context.Background(), run)
	if !errors.Is(err, tabs.ErrNoTab) || !errors.Is(err, errUnresolved) {
		t.Fatalf("expected tab and captcha errors, got %v", err)
	}
	if run.Captcha == nil || run.Captcha.Outcome != model.CaptchaUnresolved {
		t.Errorf("captcha step did not run: %+v", run.Captcha)
	}
	if run.Session.Totals.Captchas != 1 {
		t.Errorf("Captchas = %d, want 1", run.Session.Totals.Captchas)
	}
}

// TestPageStepsLogger tests that the scan step logs through Deps.Logger.
func TestPageStepsLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	steps := PageSteps(config.NewConfig(), Deps{
		Scanner:  &fakeScanner{cands: candidates("a", "b")},
		Recorder: dmlog.Discard(),
		Logger:   logger,
	})

	if err := steps[0].Do(context.Background(), newRun()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "scan finished") || !strings.Contains(buf.String(), "candidates=2") {
		t.Errorf("expected scan diagnostics, got %q", buf.String())
	}
}
