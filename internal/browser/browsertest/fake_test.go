package browsertest

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

func TestCommas(t *testing.T) {
	t.Parallel()

	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567"}
	for in, want := range tests {
		if got := commas(in); got != want {
			t.Errorf("commas(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFake_TabsAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	detail := DetailPage("https://smartstore.naver.com/a/products/1", "스마트스토어")
	f := New(ListPage("https://search.shopping.naver.com/search?q=tent", Listing("1", "텐트", 120, detail)))

	links, err := f.FindAll(ctx, browser.Named("텐트", model.RoleLink))
	if err != nil || len(links) != 1 {
		t.Fatalf("FindAll() = %v, %v", links, err)
	}
	if err := f.OpenInNewTab(ctx, links[0]); err != nil {
		t.Fatal(err)
	}

	tabs, err := f.Tabs(ctx)
	if err != nil || len(tabs) != 2 {
		t.Fatalf("Tabs() = %v, %v", tabs, err)
	}
	if err := f.Activate(ctx, tabs[1]); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(ctx, tabs[1]); err != nil {
		t.Fatal(err)
	}
	if f.TabCount() != 1 || f.ActiveIndex() != 0 {
		t.Errorf("after close: count %d active %d", f.TabCount(), f.ActiveIndex())
	}
	if err := f.Close(ctx, tabs[1]); !errors.Is(err, browser.ErrStaleTab) {
		t.Errorf("closing twice = %v, want ErrStaleTab", err)
	}
}

func TestFake_Visibility(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	page := ListPage("u")
	page.Nodes = append(page.Nodes,
		&Node{ID: "late", Parent: "list", Name: "리뷰 5", VisibleAfterScrolls: 1},
		&Node{ID: "slow", Parent: "list", Name: "네이버페이", HiddenLookups: 1},
	)
	f := New(page)

	if got, _ := f.FindAll(ctx, browser.Named("리뷰")); len(got) != 0 {
		t.Errorf("late node visible before scrolling: %v", got)
	}
	if err := f.Scroll(ctx, 400); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.FindAll(ctx, browser.Named("리뷰")); len(got) != 1 {
		t.Errorf("late node not visible after scrolling: %v", got)
	}

	if got, _ := f.FindAll(ctx, browser.Named("네이버페이")); len(got) != 0 {
		t.Error("slow node must be hidden on first lookup")
	}
	if got, _ := f.FindAll(ctx, browser.Named("네이버페이")); len(got) != 1 {
		t.Error("slow node must appear on second lookup")
	}
}

func TestFake_ParentAndChildren(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := New(ListPage("u", NestedListing("1", "텐트", 120, nil)))

	reviews, err := f.FindAll(ctx, browser.Named("리뷰"))
	if err != nil || len(reviews) != 1 {
		t.Fatalf("FindAll() = %v, %v", reviews, err)
	}

	meta, err := f.Parent(ctx, reviews[0])
	if err != nil {
		t.Fatal(err)
	}
	if meta.ID != "meta-1" {
		t.Errorf("parent = %q, want meta-1", meta.ID)
	}
	link, err := f.Parent(ctx, meta)
	if err != nil {
		t.Fatal(err)
	}
	if link.ID != "link-1" || link.Role != model.RoleLink || link.Name != "텐트" {
		t.Errorf("grandparent = %+v", link)
	}

	root, err := f.Parent(ctx, &model.Element{ID: "root"})
	if !errors.Is(err, browser.ErrNotFound) || root != nil {
		t.Errorf("Parent(root) = %v, %v; want ErrNotFound", root, err)
	}

	children, err := f.Children(ctx, link)
	if err != nil || len(children) != 1 || children[0].ID != "meta-1" {
		t.Errorf("Children() = %v, %v", children, err)
	}
}
