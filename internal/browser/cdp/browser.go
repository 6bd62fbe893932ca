package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

// ScrollStep is the pixel distance of one wheel-like scroll.
const ScrollStep = 400

// Browser implements browser.Browser, browser.Capturer and browser.Window
// over one Chrome instance.
type Browser struct {
	logger *slog.Logger

	mu     sync.Mutex
	root   context.Context
	tabs   map[target.ID]context.Context
	order  []target.ID
	active target.ID

	// trees caches the last accessibility snapshot per tab.
	trees map[target.ID]*axTree
}

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Browser) {
		b.logger = l
	}
}

// Connect attaches to the Chrome listening at debugURL.
// The most recently used page becomes tab 0.
//
// The connection is detached from ctx: cancelling ctx must not close the
// user's tabs, so the connection lives until the process exits.
func Connect(ctx context.Context, debugURL string, opts ...Option) (*Browser, error) {
	b := &Browser{
		logger: slog.Default(),
		tabs:   map[target.ID]context.Context{},
		trees:  map[target.ID]*axTree{},
	}
	for _, opt := range opts {
		opt(b)
	}

	pages, err := listPages(ctx, debugURL)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no open page at %s", browser.ErrProvider, debugURL)
	}
	first := target.ID(pages[0].ID)

	allocCtx, _ := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), debugURL)
	root, _ := chromedp.NewContext(allocCtx, chromedp.WithTargetID(first))
	if err := chromedp.Run(root); err != nil {
		return nil, fmt.Errorf("%w: attach to %s: %w", browser.ErrProvider, pages[0].URL, err)
	}

	b.root = root
	b.tabs[first] = root
	b.order = []target.ID{first}
	b.active = first
	b.logger.Debug("attached to chrome", "url", pages[0].URL, "target", string(first))
	return b, nil
}

// tabContext returns the chromedp context of id, attaching on first use.
func (b *Browser) tabContext(id target.ID) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ctx, ok := b.tabs[id]; ok {
		return ctx, nil
	}
	ctx, _ := chromedp.NewContext(b.root, chromedp.WithTargetID(id))
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return accessibility.Enable().Do(ctx)
	})); err != nil {
		return nil, fmt.Errorf("%w: attach tab: %w", browser.ErrProvider, err)
	}
	b.tabs[id] = ctx
	return ctx, nil
}

// run executes actions on tab id, aborting when ctx is done.
func (b *Browser) run(ctx context.Context, id target.ID, actions ...chromedp.Action) error {
	tabCtx, err := b.tabContext(id)
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", browser.ErrProvider, err)
	}
	return nil
}

// runActive executes actions on the active tab.
func (b *Browser) runActive(ctx context.Context, actions ...chromedp.Action) error {
	b.mu.Lock()
	id := b.active
	b.mu.Unlock()
	return b.run(ctx, id, actions...)
}

// onBrowser runs fn with an executor bound to the browser endpoint.
func (b *Browser) onBrowser(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.run(ctx, b.rootID(), chromedp.ActionFunc(func(actx context.Context) error {
		return fn(cdp.WithExecutor(actx, chromedp.FromContext(actx).Browser))
	}))
}

// Tabs implements browser.TabController. Tabs are reported in the order
// they were first seen, which is their opening order.
func (b *Browser) Tabs(ctx context.Context) ([]model.Tab, error) {
	var infos []*target.Info
	err := b.run(ctx, b.rootID(), chromedp.ActionFunc(func(actx context.Context) error {
		var err error
		infos, err = chromedp.Targets(actx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	urls := map[target.ID]string{}
	for _, info := range infos {
		if info.Type == "page" && userPage(info.URL) {
			urls[info.TargetID] = info.URL
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := urls[b.order[0]]; !ok {
		return nil, fmt.Errorf("%w: the result list tab was closed", browser.ErrProvider)
	}
	b.order = slices.DeleteFunc(b.order, func(id target.ID) bool {
		_, ok := urls[id]
		if !ok {
			delete(b.tabs, id)
			delete(b.trees, id)
		}
		return !ok
	})
	for _, info := range infos {
		if _, ok := urls[info.TargetID]; ok && !slices.Contains(b.order, info.TargetID) {
			b.order = append(b.order, info.TargetID)
		}
	}

	tabs := make([]model.Tab, len(b.order))
	for i, id := range b.order {
		tabs[i] = model.Tab{Index: i, ID: string(id), URL: urls[id]}
	}
	return tabs, nil
}

func (b *Browser) rootID() target.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order[0]
}

func (b *Browser) known(tab model.Tab) (target.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := target.ID(tab.ID)
	if !slices.Contains(b.order, id) {
		return "", fmt.Errorf("%w: %s", browser.ErrStaleTab, tab.ID)
	}
	return id, nil
}

// Activate implements browser.TabController.
func (b *Browser) Activate(ctx context.Context, tab model.Tab) error {
	id, err := b.known(tab)
	if err != nil {
		return err
	}
	if err := b.onBrowser(ctx, func(bctx context.Context) error {
		return target.ActivateTarget(id).Do(bctx)
	}); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = id
	b.mu.Unlock()
	return nil
}

// Close implements browser.TabController.
func (b *Browser) Close(ctx context.Context, tab model.Tab) error {
	id, err := b.known(tab)
	if err != nil {
		return err
	}
	if id == b.rootID() {
		return fmt.Errorf("%w: refusing to close the result list", browser.ErrProvider)
	}
	if err := b.onBrowser(ctx, func(bctx context.Context) error {
		return target.CloseTarget(id).Do(bctx)
	}); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = slices.DeleteFunc(b.order, func(t target.ID) bool { return t == id })
	delete(b.tabs, id)
	delete(b.trees, id)
	if b.active == id {
		b.active = b.order[0]
	}
	return nil
}

var (
	_ browser.Browser  = (*Browser)(nil)
	_ browser.Capturer = (*Browser)(nil)
	_ browser.Window   = (*Browser)(nil)
)
