package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

// axTree is one accessibility snapshot of a tab.
type axTree struct {
	nodes map[accessibility.NodeID]*accessibility.Node
	order []accessibility.NodeID
}

func newAXTree(nodes []*accessibility.Node) *axTree {
	t := &axTree{nodes: make(map[accessibility.NodeID]*accessibility.Node, len(nodes))}
	for _, n := range nodes {
		t.nodes[n.NodeID] = n
		t.order = append(t.order, n.NodeID)
	}
	return t
}

// axString decodes an accessibility value holding a JSON string.
func axString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(v.Value), &s); err == nil {
		return s
	}
	return strings.Trim(string(v.Value), `"`)
}

func toElement(n *accessibility.Node) *model.Element {
	return &model.Element{
		ID:        string(n.NodeID),
		BackendID: int64(n.BackendDOMNodeID),
		ParentID:  string(n.ParentID),
		Name:      browser.NormalizeName(axString(n.Name)),
		Role:      axString(n.Role),
	}
}

// snapshot fetches a fresh accessibility tree of the active tab.
func (b *Browser) snapshot(ctx context.Context) (target.ID, *axTree, error) {
	b.mu.Lock()
	id := b.active
	b.mu.Unlock()

	var nodes []*accessibility.Node
	err := b.run(ctx, id, chromedp.ActionFunc(func(actx context.Context) error {
		var err error
		nodes, err = accessibility.GetFullAXTree().Do(actx)
		return err
	}))
	if err != nil {
		return id, nil, err
	}

	tree := newAXTree(nodes)
	b.mu.Lock()
	b.trees[id] = tree
	b.mu.Unlock()
	return id, tree, nil
}

// cached returns the last snapshot of the active tab, taking one if needed.
func (b *Browser) cached(ctx context.Context) (*axTree, error) {
	b.mu.Lock()
	tree := b.trees[b.active]
	b.mu.Unlock()
	if tree != nil {
		return tree, nil
	}
	_, tree, err := b.snapshot(ctx)
	return tree, err
}

// FindAll implements browser.Finder.
func (b *Browser) FindAll(ctx context.Context, q browser.Query) ([]*model.Element, error) {
	_, tree, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var out []*model.Element
	for _, id := range tree.order {
		n := tree.nodes[id]
		if n.Ignored {
			continue
		}
		el := toElement(n)
		if q.Matches(el) {
			out = append(out, el)
		}
	}
	return out, nil
}

// Parent implements browser.Finder.
func (b *Browser) Parent(ctx context.Context, el *model.Element) (*model.Element, error) {
	tree, err := b.cached(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := tree.nodes[accessibility.NodeID(el.ID)]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", browser.ErrNotFound, el.ID)
	}
	parent, ok := tree.nodes[n.ParentID]
	if !ok {
		return nil, browser.ErrNotFound
	}
	return toElement(parent), nil
}

// Children implements browser.Finder.
func (b *Browser) Children(ctx context.Context, el *model.Element) ([]*model.Element, error) {
	tree, err := b.cached(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := tree.nodes[accessibility.NodeID(el.ID)]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", browser.ErrNotFound, el.ID)
	}

	out := make([]*model.Element, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		if c, ok := tree.nodes[cid]; ok {
			out = append(out, toElement(c))
		}
	}
	return out, nil
}

// Rect implements browser.Finder.
func (b *Browser) Rect(ctx context.Context, el *model.Element) (model.Rect, error) {
	if el == nil || el.BackendID == 0 {
		return model.Rect{}, browser.ErrNotFound
	}

	var box *dom.BoxModel
	err := b.runActive(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		var err error
		box, err = dom.GetBoxModel().WithBackendNodeID(cdp.BackendNodeID(el.BackendID)).Do(actx)
		return err
	}))
	if err != nil {
		return model.Rect{}, fmt.Errorf("%w: box of %s: %w", browser.ErrNotFound, el.ID, err)
	}
	return quadRect(box.Border), nil
}

// quadRect converts a DevTools quad (four x,y corners) to a Rect.
func quadRect(q dom.Quad) model.Rect {
	if len(q) < 8 {
		return model.Rect{}
	}
	r := model.Rect{Left: q[0], Top: q[1], Right: q[0], Bottom: q[1]}
	for i := 0; i+1 < len(q); i += 2 {
		r.Left = min(r.Left, q[i])
		r.Right = max(r.Right, q[i])
		r.Top = min(r.Top, q[i+1])
		r.Bottom = max(r.Bottom, q[i+1])
	}
	return r
}
