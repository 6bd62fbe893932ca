// Package pipeline runs the per-page work of a session as a sequence of
// steps: scan the result list, open qualifying listings, dwell, filter and
// prune tabs, and clear CAPTCHAs.
//
// Each step receives the PageRun of the current page and fills in its
// part. Steps return an error only when the page cannot go on; recoverable
// problems are written to the event log and the step carries on.
package pipeline
