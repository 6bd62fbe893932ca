package browser

import "errors"

var (
	// ErrNotFound is returned when an element, its parent or a tab does not exist.
	ErrNotFound = errors.New("element not found")

	// ErrNoURL is returned when a tab reports no URL.
	ErrNoURL = errors.New("tab has no url")

	// ErrProvider is returned when the browser connection fails.
	ErrProvider = errors.New("browser provider failure")

	// ErrStaleTab is returned when a tab disappeared since it was enumerated.
	ErrStaleTab = errors.New("tab no longer exists")
)
