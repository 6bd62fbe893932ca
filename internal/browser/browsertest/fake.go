// Package browsertest provides an in-memory browser for tests.
//
// A Fake holds one Page per tab. Pages are flat lists of nodes linked by
// parent id, which is enough to model result lists, pagination bars,
// detail pages and CAPTCHA forms.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

// Node is one accessibility node of a fake page.
type Node struct {
	ID     string
	Parent string
	Name   string
	Role   string
	Rect   model.Rect

	// VisibleAfterScrolls hides the node until the page was scrolled this often.
	VisibleAfterScrolls int

	// HiddenLookups hides the node from the first n FindAll calls that
	// would have matched it.
	HiddenLookups int

	// Opens is the page added as a new tab by OpenInNewTab.
	Opens *Page

	// OnInvoke runs when the node is invoked.
	OnInvoke func(f *Fake) error

	// FailOpen makes OpenInNewTab fail for this node.
	FailOpen bool
}

// Page is the content of one tab.
type Page struct {
	URL      string
	Nodes    []*Node
	Viewport float64

	scrolls int
}

// Clone returns a deep copy of p, so one template can back many tabs.
func (p *Page) Clone() *Page {
	c := &Page{URL: p.URL, Viewport: p.Viewport}
	for _, n := range p.Nodes {
		cp := *n
		c.Nodes = append(c.Nodes, &cp)
	}
	return c
}

// Fake is an in-memory browser.Browser, browser.Capturer and browser.Window.
type Fake struct {
	mu sync.Mutex

	pages  []*Page
	ids    []string
	nextID int
	active int

	// Disp is returned by Display.
	Disp browser.Display

	// Screenshot is returned by Capture.
	Screenshot []byte

	// FailFind makes FindAll fail with browser.ErrProvider.
	FailFind bool

	// FailClose makes Close fail for URLs in the set.
	FailClose map[string]bool

	// Invoked lists invoked node ids in order.
	Invoked []string

	// Values holds the last value set per node id.
	Values map[string]string

	// ClosedURLs lists closed tab URLs in order.
	ClosedURLs []string

	// Scrolls lists every scroll delta on any tab.
	Scrolls []float64

	// Captures counts Capture calls.
	Captures int
}

// New returns a Fake whose first tab shows list.
func New(list *Page) *Fake {
	f := &Fake{
		Values:    map[string]string{},
		FailClose: map[string]bool{},
		Disp:      browser.Display{Width: 1920, Height: 1080, Scale: 100, Maximized: true},
	}
	f.AddTab(list)
	return f
}

// AddTab appends page as a new tab without activating it.
func (f *Fake) AddTab(page *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addTabLocked(page)
}

func (f *Fake) addTabLocked(page *Page) {
	if page.Viewport == 0 {
		page.Viewport = 1000
	}
	f.nextID++
	f.pages = append(f.pages, page)
	f.ids = append(f.ids, fmt.Sprintf("T%d", f.nextID))
}

// ReplacePage swaps the content of tab index, e.g. after navigation.
func (f *Fake) ReplacePage(index int, page *Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page.Viewport == 0 {
		page.Viewport = 1000
	}
	f.pages[index] = page
}

// TabCount returns the number of open tabs.
func (f *Fake) TabCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pages)
}

// URLs returns the tab URLs in order.
func (f *Fake) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.pages))
	for i, p := range f.pages {
		out[i] = p.URL
	}
	return out
}

// ActiveIndex returns the index of the active tab.
func (f *Fake) ActiveIndex() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Page returns the page of tab index.
func (f *Fake) Page(index int) *Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[index]
}

func (f *Fake) current() *Page {
	return f.pages[f.active]
}

func toElement(n *Node) *model.Element {
	return &model.Element{ID: n.ID, ParentID: n.Parent, Name: n.Name, Role: n.Role}
}

func (f *Fake) node(el *model.Element) (*Node, error) {
	if el == nil {
		return nil, browser.ErrNotFound
	}
	for _, n := range f.current().Nodes {
		if n.ID == el.ID && f.visible(n) {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, el.ID)
}

func (f *Fake) visible(n *Node) bool {
	return f.current().scrolls >= n.VisibleAfterScrolls
}

// FindAll implements browser.Finder.
func (f *Fake) FindAll(ctx context.Context, q browser.Query) ([]*model.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailFind {
		return nil, browser.ErrProvider
	}
	var out []*model.Element
	for _, n := range f.current().Nodes {
		if !f.visible(n) {
			continue
		}
		el := toElement(n)
		if !q.Matches(el) {
			continue
		}
		if n.HiddenLookups > 0 {
			n.HiddenLookups--
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

// Parent implements browser.Finder.
func (f *Fake) Parent(_ context.Context, el *model.Element) (*model.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.node(el)
	if err != nil {
		return nil, err
	}
	if n.Parent == "" {
		return nil, browser.ErrNotFound
	}
	pn, err := f.node(&model.Element{ID: n.Parent})
	if err != nil {
		return nil, err
	}
	return toElement(pn), nil
}

// Children implements browser.Finder.
func (f *Fake) Children(_ context.Context, el *model.Element) ([]*model.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.node(el); err != nil {
		return nil, err
	}
	var out []*model.Element
	for _, n := range f.current().Nodes {
		if n.Parent == el.ID && f.visible(n) {
			out = append(out, toElement(n))
		}
	}
	return out, nil
}

// Rect implements browser.Finder.
func (f *Fake) Rect(_ context.Context, el *model.Element) (model.Rect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.node(el)
	if err != nil {
		return model.Rect{}, err
	}
	return n.Rect, nil
}

// Invoke implements browser.Actor.
func (f *Fake) Invoke(_ context.Context, el *model.Element) error {
	f.mu.Lock()
	n, err := f.node(el)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.Invoked = append(f.Invoked, n.ID)
	hook := n.OnInvoke
	f.mu.Unlock()

	if hook != nil {
		return hook(f)
	}
	return nil
}

// OpenInNewTab implements browser.Actor.
func (f *Fake) OpenInNewTab(_ context.Context, el *model.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.node(el)
	if err != nil {
		return err
	}
	if n.FailOpen {
		return errors.New("open failed")
	}
	if n.Opens == nil {
		return fmt.Errorf("%w: %s has no target", browser.ErrNotFound, n.ID)
	}
	f.addTabLocked(n.Opens.Clone())
	return nil
}

// SetValue implements browser.Actor.
func (f *Fake) SetValue(_ context.Context, el *model.Element, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.node(el)
	if err != nil {
		return err
	}
	f.Values[n.ID] = value
	return nil
}

// Scroll implements browser.Actor.
func (f *Fake) Scroll(_ context.Context, dy float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Scrolls = append(f.Scrolls, dy)
	if dy > 0 {
		f.current().scrolls++
	}
	return nil
}

// ViewportHeight implements browser.Actor.
func (f *Fake) ViewportHeight(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().Viewport, nil
}

// Tabs implements browser.TabController.
func (f *Fake) Tabs(ctx context.Context) ([]model.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Tab, len(f.pages))
	for i, p := range f.pages {
		out[i] = model.Tab{Index: i, ID: f.ids[i], URL: p.URL}
	}
	return out, nil
}

func (f *Fake) indexOf(tab model.Tab) (int, error) {
	for i, id := range f.ids {
		if id == tab.ID {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", browser.ErrStaleTab, tab.ID)
}

// Activate implements browser.TabController.
func (f *Fake) Activate(_ context.Context, tab model.Tab) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, err := f.indexOf(tab)
	if err != nil {
		return err
	}
	f.active = i
	return nil
}

// Close implements browser.TabController.
func (f *Fake) Close(_ context.Context, tab model.Tab) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, err := f.indexOf(tab)
	if err != nil {
		return err
	}
	if f.FailClose[f.pages[i].URL] {
		return browser.ErrProvider
	}
	f.ClosedURLs = append(f.ClosedURLs, f.pages[i].URL)
	f.pages = append(f.pages[:i], f.pages[i+1:]...)
	f.ids = append(f.ids[:i], f.ids[i+1:]...)
	switch {
	case f.active == i:
		f.active = 0
	case f.active > i:
		f.active--
	}
	return nil
}

// Capture implements browser.Capturer.
func (f *Fake) Capture(_ context.Context, _ *model.Rect) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Captures++
	if f.Screenshot == nil {
		return nil, browser.ErrProvider
	}
	return f.Screenshot, nil
}

// Display implements browser.Window.
func (f *Fake) Display(_ context.Context) (browser.Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Disp, nil
}

// Maximize implements browser.Window.
func (f *Fake) Maximize(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disp.Maximized = true
	return nil
}

var (
	_ browser.Browser  = (*Fake)(nil)
	_ browser.Capturer = (*Fake)(nil)
	_ browser.Window   = (*Fake)(nil)
)
