package session

import "errors"

// ErrNoKeywords is returned when Run is called without keywords.
var ErrNoKeywords = errors.New("no keywords given")
