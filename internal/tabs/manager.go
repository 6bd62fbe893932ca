package tabs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/config"
	dmlog "github.com/nao1215/deskmaster/internal/log"
	"github.com/nao1215/deskmaster/internal/model"
	"github.com/nao1215/deskmaster/internal/pace"
)

// Close reasons written to the event log.
const (
	ReasonExternal      = "external-mall"
	ReasonExternalPrune = "external-mall-pruned"
	ReasonLimit         = "tab-limit-exceeded"
)

// Decision reasons.
const (
	reasonBlocked  = "blocked-domain"
	reasonNoSignal = "no-internal-signal"
	reasonNoURL    = "no-url"
)

const (
	switchSettle = 300 * time.Millisecond
	closeSettle  = 200 * time.Millisecond
)

// Browser is the part of the browser the manager needs.
type Browser interface {
	browser.TabController
	FindAll(ctx context.Context, q browser.Query) ([]*model.Element, error)
}

// Report summarizes one ProcessAll pass.
type Report struct {
	Processed int
	Closed    int
	Verdicts  []model.TabVerdict
}

// Manager classifies and closes tabs.
type Manager struct {
	b     Browser
	rec   *dmlog.Recorder
	pacer *pace.Pacer

	signals       []string
	allowed       []string
	blocked       []string
	maxTotal      int
	maxEnumerated int
	grace         time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithPacer sets the source of randomness and sleeping.
func WithPacer(p *pace.Pacer) Option {
	return func(m *Manager) {
		m.pacer = p
	}
}

// WithGrace sets the wait before re-checking a tab without signals.
func WithGrace(d time.Duration) Option {
	return func(m *Manager) {
		m.grace = d
	}
}

// New creates a Manager. cfg must have been validated.
func New(b Browser, cfg *config.Config, rec *dmlog.Recorder, opts ...Option) *Manager {
	m := &Manager{
		b:             b,
		rec:           rec,
		pacer:         pace.New(),
		signals:       cfg.InternalSignals,
		allowed:       cfg.AllowedDomains,
		blocked:       cfg.BlockedDomains,
		maxTotal:      cfg.Chrome.MaxTabsTotal,
		maxEnumerated: cfg.Chrome.MaxEnumeratedTabs,
		grace:         config.DefaultSignalGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classify decides whether tab shows an internal mall.
// The block list wins over the allow list, which wins over page content.
// A page without signals is checked once more after the grace period.
func (m *Manager) Classify(ctx context.Context, tab model.Tab) (model.Decision, error) {
	host, err := Host(tab.URL)
	if err != nil {
		m.rec.Error(dmlog.CodeTabRead, fmt.Sprintf("tab %d: %v", tab.Index, err), true)
		return model.Decision{Verdict: model.VerdictExternal, Reason: reasonNoURL}, nil
	}
	m.rec.DetailCheckStart(tab.Index, tab.URL)

	if _, ok := matchAny(host, m.blocked); ok {
		m.rec.InternalSignalMissing(tab.Index)
		return model.Decision{Verdict: model.VerdictExternal, Reason: reasonBlocked}, nil
	}
	if d, ok := matchAny(host, m.allowed); ok {
		reason := "domain:" + d
		m.rec.InternalSignalOK(tab.Index, reason)
		return model.Decision{Verdict: model.VerdictInternal, Reason: reason}, nil
	}

	if err := m.activate(ctx, tab); err != nil {
		return model.Decision{}, err
	}
	signal := m.findSignal(ctx, tab)
	if signal == "" {
		m.rec.Info("no internal signal yet, waiting for slow frames", "tab", tab.Index, "grace", m.grace.String())
		if err := m.pacer.Sleep(ctx, m.grace); err != nil {
			return model.Decision{}, err
		}
		signal = m.findSignal(ctx, tab)
	}
	if signal == "" {
		m.rec.InternalSignalMissing(tab.Index)
		return model.Decision{Verdict: model.VerdictExternal, Reason: reasonNoSignal}, nil
	}
	m.rec.InternalSignalOK(tab.Index, signal)
	return model.Decision{Verdict: model.VerdictInternal, Reason: "signal:" + signal}, nil
}

// findSignal returns the first internal signal shown on the active tab.
func (m *Manager) findSignal(ctx context.Context, tab model.Tab) string {
	for _, s := range m.signals {
		found, err := m.b.FindAll(ctx, browser.Named(s))
		if err != nil {
			if ctx.Err() == nil {
				m.rec.Error(dmlog.CodeTabRead, fmt.Sprintf("tab %d: signal check: %v", tab.Index, err), true)
			}
			return ""
		}
		if len(found) > 0 {
			return s
		}
	}
	return ""
}

// ProcessAll classifies every tab except the result list, newest first, and
// closes the external ones.
func (m *Manager) ProcessAll(ctx context.Context) (Report, error) {
	var report Report

	snapshot, err := m.enumerate(ctx)
	if err != nil {
		return report, err
	}
	defer m.restoreList(ctx)

	for i := len(snapshot) - 1; i >= 1; i-- {
		tab, ok, err := m.lookup(ctx, snapshot[i].ID)
		if err != nil {
			return report, err
		}
		if !ok {
			continue
		}
		report.Processed++

		d, err := m.Classify(ctx, tab)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			m.rec.Error(dmlog.CodeTabRead, fmt.Sprintf("tab %d: %v", tab.Index, err), true)
			continue
		}

		v := verdict(tab, d)
		if !d.Internal() {
			if err := m.close(ctx, tab, ReasonExternal); err == nil {
				report.Closed++
				v.Closed = true
				v.Cause = ReasonExternal
			} else if ctx.Err() != nil {
				return report, ctx.Err()
			}
		}
		report.Verdicts = append(report.Verdicts, v)
	}
	return report, nil
}

// EnforceLimits closes tabs until at most the configured total remain,
// given that current tabs are open. External tabs are closed first, newest
// first; then the oldest detail tab is closed repeatedly.
// It returns the number of tabs closed.
func (m *Manager) EnforceLimits(ctx context.Context, current int) (int, error) {
	if current <= m.maxTotal {
		return 0, nil
	}
	m.rec.TabLimitHit(current, m.maxTotal)
	overflow := current - m.maxTotal
	pruned := 0
	defer func() { m.rec.TabPruned(pruned) }()

	snapshot, err := m.allTabs(ctx)
	if err != nil {
		return pruned, err
	}
	defer m.restoreList(ctx)

	for i := len(snapshot) - 1; i >= 1 && pruned < overflow; i-- {
		tab, ok, err := m.lookup(ctx, snapshot[i].ID)
		if err != nil {
			return pruned, err
		}
		if !ok {
			continue
		}
		d, err := m.Classify(ctx, tab)
		if err != nil {
			if ctx.Err() != nil {
				return pruned, ctx.Err()
			}
			continue
		}
		if d.Internal() {
			continue
		}
		if err := m.close(ctx, tab, ReasonExternalPrune); err == nil {
			pruned++
		} else if ctx.Err() != nil {
			return pruned, ctx.Err()
		}
	}

	for pruned < overflow {
		tabs, err := m.allTabs(ctx)
		if err != nil {
			return pruned, err
		}
		if len(tabs) < 2 {
			break
		}
		if err := m.close(ctx, tabs[1], ReasonLimit); err != nil {
			if ctx.Err() != nil {
				return pruned, ctx.Err()
			}
			break
		}
		pruned++
	}
	return pruned, nil
}

// allTabs returns every open tab.
func (m *Manager) allTabs(ctx context.Context) ([]model.Tab, error) {
	tabs, err := m.b.Tabs(ctx)
	if err != nil {
		return nil, err
	}
	if len(tabs) == 0 {
		return nil, ErrNoTab
	}
	return tabs, nil
}

// enumerate returns the open tabs, at most maxEnumerated of them when a
// cap is configured.
func (m *Manager) enumerate(ctx context.Context) ([]model.Tab, error) {
	tabs, err := m.allTabs(ctx)
	if err != nil {
		return nil, err
	}
	if m.maxEnumerated > 0 && len(tabs) > m.maxEnumerated {
		tabs = tabs[:m.maxEnumerated]
	}
	return tabs, nil
}

// lookup re-reads the tab list and returns the tab with id at its current
// index.
func (m *Manager) lookup(ctx context.Context, id string) (model.Tab, bool, error) {
	tabs, err := m.b.Tabs(ctx)
	if err != nil {
		return model.Tab{}, false, err
	}
	for _, t := range tabs {
		if t.ID == id {
			return t, true, nil
		}
	}
	return model.Tab{}, false, nil
}

func (m *Manager) activate(ctx context.Context, tab model.Tab) error {
	if err := m.b.Activate(ctx, tab); err != nil {
		return fmt.Errorf("switch to tab %d: %w", tab.Index, err)
	}
	return m.pacer.Sleep(ctx, switchSettle)
}

func (m *Manager) close(ctx context.Context, tab model.Tab, reason string) error {
	if err := m.b.Close(ctx, tab); err != nil {
		if ctx.Err() == nil {
			m.rec.Error(dmlog.CodeTabClose, fmt.Sprintf("tab %d: %v", tab.Index, err), true)
		}
		return err
	}
	m.rec.TabClosed(tab.Index, reason)
	_ = m.pacer.Sleep(ctx, closeSettle)
	return nil
}

// restoreList brings the result list back to the front.
func (m *Manager) restoreList(ctx context.Context) {
	tabs, err := m.b.Tabs(ctx)
	if err != nil || len(tabs) == 0 {
		return
	}
	if err := m.b.Activate(ctx, tabs[0]); err != nil && !errors.Is(err, context.Canceled) {
		m.rec.Error(dmlog.CodeTabRead, fmt.Sprintf("return to result list: %v", err), true)
	}
}

func verdict(tab model.Tab, d model.Decision) model.TabVerdict {
	host, _ := Host(tab.URL)
	return model.TabVerdict{
		Tab:     tab.Index,
		URL:     tab.URL,
		Domain:  Domain(host),
		Verdict: d.Verdict,
		Reason:  d.Reason,
	}
}
