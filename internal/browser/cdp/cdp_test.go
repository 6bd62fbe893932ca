package cdp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/dom"

	"github.com/nao1215/deskmaster/internal/browser"
	"github.com/nao1215/deskmaster/internal/model"
)

func TestQuadRect(t *testing.T) {
	t.Parallel()

	got := quadRect(dom.Quad{10, 20, 110, 20, 110, 60, 10, 60})
	want := model.Rect{Left: 10, Top: 20, Right: 110, Bottom: 60}
	if got != want {
		t.Errorf("quadRect() = %+v, want %+v", got, want)
	}
	if !quadRect(dom.Quad{1, 2}).Empty() {
		t.Error("short quad must give an empty rect")
	}
}

func TestAXString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *accessibility.Value
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "json string", in: &accessibility.Value{Value: []byte(`"리뷰 1,234"`)}, want: "리뷰 1,234"},
		{name: "escaped", in: &accessibility.Value{Value: []byte(`"a\"b"`)}, want: `a"b`},
		{name: "number", in: &accessibility.Value{Value: []byte(`12`)}, want: "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := axString(tt.in); got != tt.want {
				t.Errorf("axString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToElement(t *testing.T) {
	t.Parallel()

	n := &accessibility.Node{
		NodeID:           "7",
		ParentID:         "3",
		BackendDOMNodeID: 42,
		Role:             &accessibility.Value{Value: []byte(`"link"`)},
		Name:             &accessibility.Value{Value: []byte(`"  캠핑   텐트 "`)},
	}
	el := toElement(n)
	if el.ID != "7" || el.ParentID != "3" || el.BackendID != 42 || el.Role != "link" || el.Name != "캠핑 텐트" {
		t.Errorf("unexpected element %+v", el)
	}
	if !el.Clickable() {
		t.Error("link must be clickable")
	}
}

func TestAXTreeOrder(t *testing.T) {
	t.Parallel()

	tree := newAXTree([]*accessibility.Node{{NodeID: "1"}, {NodeID: "2", ParentID: "1"}})
	if len(tree.order) != 2 || tree.order[0] != "1" || tree.nodes["2"].ParentID != "1" {
		t.Errorf("unexpected tree %+v", tree)
	}
}

func TestListPages(t *testing.T) {
	t.Parallel()

	t.Run("filters page targets", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/json/list" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(`[
				{"id":"A","type":"page","url":"https://search.shopping.naver.com/search/all?query=tent"},
				{"id":"B","type":"service_worker","url":"https://x"},
				{"id":"C","type":"page","url":"devtools://devtools/bundled/inspector.html"},
				{"id":"D","type":"page","url":"https://smartstore.naver.com/a/products/1"}
			]`))
		}))
		defer srv.Close()

		pages, err := listPages(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("listPages() error = %v", err)
		}
		if len(pages) != 2 || pages[0].ID != "A" || pages[1].ID != "D" {
			t.Errorf("unexpected pages %+v", pages)
		}
	})

	t.Run("endpoint error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		if _, err := listPages(context.Background(), srv.URL); !errors.Is(err, browser.ErrProvider) {
			t.Errorf("expected ErrProvider, got %v", err)
		}
	})
}

func TestUserPage(t *testing.T) {
	t.Parallel()

	if userPage("chrome-extension://abc/popup.html") {
		t.Error("extension pages are not user pages")
	}
	if !userPage("about:blank") {
		t.Error("about:blank is a user page")
	}
}
