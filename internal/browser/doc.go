// Package browser defines how deskmaster sees and drives the browser.
//
// Everything is expressed against the accessibility tree of the active tab:
// elements are found by accessible name and role, walked through their
// parents and children, and invoked. Tabs are enumerated fresh on every
// call and addressed by the index they had in that enumeration only.
//
// The cdp subpackage implements these interfaces over the Chrome DevTools
// Protocol; browsertest provides an in-memory fake for tests.
package browser
