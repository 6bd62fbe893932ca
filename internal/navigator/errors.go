package navigator

import "errors"

var (
	// ErrNoNextPage is returned when no pagination control is visible.
	ErrNoNextPage = errors.New("no next page control")

	// ErrPresetFailed is returned when a preset could not be applied
	// within the configured number of attempts.
	ErrPresetFailed = errors.New("preset could not be applied")
)
