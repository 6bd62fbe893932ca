// Package session runs a DeskMaster session end to end.
//
// A Runner checks the display, verifies the list presets, and then walks
// every keyword page by page through the page pipeline: scan, open, dwell,
// tab filtering and pruning, and the CAPTCHA check. Between pages it asks
// the navigator for the next page.
//
// All counters live in a model.Session owned by the run. When the run
// ends, for any reason, a model.Summary is logged, stored, and returned.
package session
