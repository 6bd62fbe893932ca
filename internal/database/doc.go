// Package database provides SQLite-based storage for DeskMaster session history.
//
// This package implements the HistoryDB, which stores:
//   - Sessions with their keywords, final status and summary
//   - Every processed result page with its counters and CAPTCHA outcome
//   - Every tab open attempt
//   - Every merchant classification of a detail tab
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// history is a single file next to the other XDG data of the tool.
// WAL mode is enabled by default.
package database
