// Package tabs classifies the detail tabs opened from a result page and
// keeps their number within the configured budget.
//
// A tab is internal when its domain is allow-listed or its page shows one
// of the configured internal-mall signals, and external otherwise. External
// tabs are closed. When too many tabs are open, external tabs go first and
// then the oldest ones.
//
// Tab indices shift whenever a tab closes, so tabs are tracked by their
// stable ID and the tab list is read again after every close.
package tabs
