package environment

import "errors"

var (
	// ErrResolution is returned when the screen size differs from the
	// configured display.
	ErrResolution = errors.New("screen resolution mismatch")

	// ErrScale is returned when the device scale, browser zoom included,
	// differs from the configured scale.
	ErrScale = errors.New("display scale mismatch")

	// ErrNotMaximized is returned when the browser window cannot be
	// maximized.
	ErrNotMaximized = errors.New("browser window is not maximized")
)
