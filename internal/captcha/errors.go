package captcha

import "errors"

var (
	// ErrUnresolved is returned when a challenge is still shown after both
	// automatic and manual solving.
	ErrUnresolved = errors.New("captcha unresolved")

	// ErrNoInput is returned by TerminalGate when its input is closed.
	ErrNoInput = errors.New("no input to resume from")
)
