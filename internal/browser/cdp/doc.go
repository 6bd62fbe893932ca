// Package cdp drives a running Chrome through the DevTools protocol.
//
// Chrome must be started by the user with --remote-debugging-port so the
// session keeps the user's profile, cookies and window. Connect attaches to
// the most recently used page target, which is expected to show the search
// results, and never opens or closes tabs on its own.
//
// Elements come from the full accessibility tree of the active tab; input
// is delivered through script calls flagged as user gestures.
package cdp
