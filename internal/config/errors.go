package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrNoKeywords is returned when no search keyword was given.
	ErrNoKeywords = errors.New("no keywords specified: provide one or more search keywords")

	// ErrNoDebugURL is returned when the Chrome DevTools endpoint is empty.
	ErrNoDebugURL = errors.New("chrome.debug_url must not be empty")

	// ErrInvalidReviewRange is returned when min is negative or above max.
	ErrInvalidReviewRange = errors.New("invalid review_range: need 0 <= min <= max")

	// ErrInvalidTabLimit is returned when a tab limit is too small.
	ErrInvalidTabLimit = errors.New("invalid tab limits: max_tabs_total and max_tabs_per_page must be positive, max_enumerated_tabs 0 or at least 2")

	// ErrInvalidScrollPasses is returned for an empty scroll pass range.
	ErrInvalidScrollPasses = errors.New("invalid scroll passes: need 1 <= scroll_passes_min <= scroll_passes_max")

	// ErrInvalidMaxPages is returned when the per-keyword page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max_pages_per_keyword: must be positive")

	// ErrInvalidParentDepth is returned for a negative clickable search depth.
	ErrInvalidParentDepth = errors.New("invalid parent_depth: must be non-negative")

	// ErrInvalidDwell is returned for an inverted dwell range or a probability outside [0,1].
	ErrInvalidDwell = errors.New("invalid dwell: ranges need 0 <= min <= max and probabilities must be in [0,1]")

	// ErrInvalidPreset is returned when the sort preset is empty or max_retry is not positive.
	ErrInvalidPreset = errors.New("invalid preset: sorting must be set and max_retry must be positive")

	// ErrInvalidConfidence is returned when min_confidence is outside [0,1].
	ErrInvalidConfidence = errors.New("invalid captcha.min_confidence: must be in [0,1]")

	// ErrInvalidCaptchaAttempts is returned when the auto solver has no attempts.
	ErrInvalidCaptchaAttempts = errors.New("invalid captcha.auto_solver.max_attempts: must be positive")

	// ErrInvalidDisplay is returned for a non-positive display size or scale.
	ErrInvalidDisplay = errors.New("invalid display: width, height and scale must be positive")

	// ErrInvalidPattern is returned when a configured regular expression does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrUnknownToolServer is returned when a tool reference names a server that is not configured.
	ErrUnknownToolServer = errors.New("unknown tool server")
)
