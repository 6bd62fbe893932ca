package model

import "strings"

// Element roles as reported by the accessibility tree.
// Only the roles the automation cares about are named here.
const (
	RoleLink       = "link"
	RoleButton     = "button"
	RoleStaticText = "StaticText"
	RoleTextField  = "textbox"
	RoleComboBox   = "combobox"
	RoleMenuItem   = "menuitem"
	RoleOption     = "option"
)

// Element is a node of the accessibility tree of the current tab.
// It is a value snapshot: invoking or reading it again always goes back
// to the browser.
type Element struct {
	// ID identifies the node within the tab that produced it.
	// Two Elements with the same ID refer to the same on-screen node.
	ID string `json:"id"`

	// BackendID is the DOM backend node id used to act on the element.
	BackendID int64 `json:"backend_id,omitempty"`

	// ParentID is the ID of the parent node, empty for the root.
	ParentID string `json:"parent_id,omitempty"`

	// Name is the accessible name, normalized to NFC.
	Name string `json:"name"`

	// Role is the accessibility role (link, button, StaticText, ...).
	Role string `json:"role"`
}

// Clickable reports whether the element can be invoked to follow a listing.
func (e *Element) Clickable() bool {
	if e == nil {
		return false
	}
	switch strings.ToLower(e.Role) {
	case "link", "hyperlink", "button":
		return true
	default:
		return false
	}
}

// Rect is an element rectangle in viewport CSS pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the rectangle width.
func (r Rect) Width() float64 {
	return r.Right - r.Left
}

// Height returns the rectangle height.
func (r Rect) Height() float64 {
	return r.Bottom - r.Top
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}
