package browsertest

import (
	"fmt"

	"github.com/nao1215/deskmaster/internal/model"
)

// Listing returns the nodes of one search result: a container holding a
// product link and a sibling "리뷰 N" text. Opening the link adds detail.
func Listing(id, label string, reviews int, detail *Page) []*Node {
	container := "item-" + id
	return []*Node{
		{ID: container, Parent: "list", Role: "generic"},
		{ID: "link-" + id, Parent: container, Name: label, Role: model.RoleLink, Opens: detail},
		{ID: "reviews-" + id, Parent: container, Name: fmt.Sprintf("리뷰 %s", commas(reviews)), Role: model.RoleStaticText},
	}
}

// NestedListing returns a result whose review text sits inside the link,
// so the clickable element is found by walking up.
func NestedListing(id, label string, reviews int, detail *Page) []*Node {
	link := "link-" + id
	return []*Node{
		{ID: link, Parent: "list", Name: label, Role: model.RoleLink, Opens: detail},
		{ID: "meta-" + id, Parent: link, Role: "generic"},
		{ID: "reviews-" + id, Parent: "meta-" + id, Name: fmt.Sprintf("리뷰 %s", commas(reviews)), Role: model.RoleStaticText},
	}
}

// ListPage returns a result page holding the given listings under a "list" root.
func ListPage(url string, listings ...[]*Node) *Page {
	p := &Page{URL: url, Viewport: 1000}
	p.Nodes = append(p.Nodes, &Node{ID: "root", Role: "RootWebArea"}, &Node{ID: "list", Parent: "root", Role: "list"})
	for _, l := range listings {
		p.Nodes = append(p.Nodes, l...)
	}
	return p
}

// DetailPage returns a product page showing the given texts.
func DetailPage(url string, texts ...string) *Page {
	p := &Page{URL: url, Viewport: 1000}
	p.Nodes = append(p.Nodes, &Node{ID: "root", Role: "RootWebArea"})
	for i, t := range texts {
		p.Nodes = append(p.Nodes, &Node{ID: fmt.Sprintf("text-%d", i), Parent: "root", Name: t, Role: model.RoleStaticText})
	}
	return p
}

// PageLink returns a pagination link placed at top in viewport pixels.
func PageLink(id, name string, top float64, onInvoke func(f *Fake) error) *Node {
	return &Node{
		ID:       id,
		Parent:   "root",
		Name:     name,
		Role:     model.RoleLink,
		Rect:     model.Rect{Left: 900, Top: top, Right: 930, Bottom: top + 30},
		OnInvoke: onInvoke,
	}
}

func commas(n int) string {
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
