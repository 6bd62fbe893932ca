// Package log holds the two logging sinks of deskmaster.
//
// The diagnostic sink is a plain slog.Logger on stderr whose handler masks
// secrets (tool API keys, browser cookies, bearer tokens) before anything is
// written. The event sink is the Recorder, which appends one JSON object per
// line to a session file under the log directory:
//
//	{"ts":"2025-01-02T10:04:05.123+09:00","event":"candidate-found","phase":"scan","keyword":"tent","page":1,"extra":{"reviews":120}}
//
// Each catalog event has its own Recorder method so call sites never spell
// event names by hand.
package log
