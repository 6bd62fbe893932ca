// Package model defines the data types shared by the DeskMaster packages.
//
// This package contains the following main types:
//   - Element and Rect: an accessible UI element and its on-screen bounds
//   - Candidate: a listing found on a result page together with its review count
//   - Tab: one open browser tab, identified by its position
//   - Session: the mutable counters threaded through a run
//   - Summary: the end-of-run totals printed and persisted after a session
//
// Models carry no behaviour beyond small helpers so every other package can
// depend on them without import cycles. They serialize to JSON for the
// session history and the report writers.
package model
