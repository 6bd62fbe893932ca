package browser

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/nao1215/deskmaster/internal/model"
)

// Finder queries the accessibility tree of the active tab.
type Finder interface {
	// FindAll returns every element matching q in document order.
	FindAll(ctx context.Context, q Query) ([]*model.Element, error)

	// Parent returns the parent of el, or ErrNotFound at the root.
	Parent(ctx context.Context, el *model.Element) (*model.Element, error)

	// Children returns the direct children of el.
	Children(ctx context.Context, el *model.Element) ([]*model.Element, error)

	// Rect returns the bounding rectangle of el in viewport pixels.
	Rect(ctx context.Context, el *model.Element) (model.Rect, error)
}

// Actor performs input on the active tab.
type Actor interface {
	// Invoke clicks el.
	Invoke(ctx context.Context, el *model.Element) error

	// OpenInNewTab opens the target of el in a background tab.
	OpenInNewTab(ctx context.Context, el *model.Element) error

	// SetValue replaces the text of an input element.
	SetValue(ctx context.Context, el *model.Element, value string) error

	// Scroll scrolls the viewport by dy pixels; negative scrolls up.
	Scroll(ctx context.Context, dy float64) error

	// ViewportHeight returns the visible height in pixels.
	ViewportHeight(ctx context.Context) (float64, error)
}

// TabController enumerates and manipulates tabs.
type TabController interface {
	// Tabs returns the open tabs in order; index 0 is the result list.
	Tabs(ctx context.Context) ([]model.Tab, error)

	// Activate brings tab to the front.
	Activate(ctx context.Context, tab model.Tab) error

	// Close closes tab.
	Close(ctx context.Context, tab model.Tab) error
}

// Browser is the full surface used by the automation.
type Browser interface {
	Finder
	Actor
	TabController
}

// Capturer takes screenshots of the active tab.
type Capturer interface {
	// Capture returns a PNG of clip, or of the whole viewport when clip is nil.
	Capture(ctx context.Context, clip *model.Rect) ([]byte, error)
}

// Display describes the screen the browser window is on.
type Display struct {
	Width  int
	Height int

	// Scale is the device scale in percent, browser zoom included.
	Scale int

	Maximized bool
}

// Window reports and adjusts the browser window.
type Window interface {
	Display(ctx context.Context) (Display, error)
	Maximize(ctx context.Context) error
}

// Query selects elements by accessible name and role.
type Query struct {
	// Name is matched against the normalized accessible name.
	// A nil Name matches every element.
	Name *regexp.Regexp

	// Roles restricts the match to these roles, compared case-insensitively.
	// Empty matches every role.
	Roles []string
}

// Named returns a query matching names against pattern.
// The pattern must compile; it comes from validated configuration.
func Named(pattern string, roles ...string) Query {
	return Query{Name: regexp.MustCompile(pattern), Roles: roles}
}

// Exact returns a query matching the whole name s.
func Exact(s string, roles ...string) Query {
	return Query{Name: regexp.MustCompile(`^\s*` + regexp.QuoteMeta(NormalizeName(s)) + `\s*$`), Roles: roles}
}

// AnyOf returns a query matching any of the given patterns.
func AnyOf(patterns []string, roles ...string) Query {
	quoted := make([]string, 0, len(patterns))
	for _, p := range patterns {
		quoted = append(quoted, "(?:"+p+")")
	}
	return Named("(?i)"+strings.Join(quoted, "|"), roles...)
}

// Matches reports whether el satisfies q.
func (q Query) Matches(el *model.Element) bool {
	if el == nil {
		return false
	}
	if len(q.Roles) > 0 {
		ok := false
		for _, r := range q.Roles {
			if strings.EqualFold(r, el.Role) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.Name == nil {
		return true
	}
	return q.Name.MatchString(NormalizeName(el.Name))
}

// NormalizeName folds an accessible name to NFC with canonical widths and
// collapsed whitespace, so "리뷰　1,234" and "리뷰 1,234" compare equal.
func NormalizeName(s string) string {
	s = width.Fold.String(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}
