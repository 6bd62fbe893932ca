package tabs

import "errors"

var (
	// ErrNoTab is returned when the browser reports no open tab at all.
	ErrNoTab = errors.New("no open tab")
)
