// Package metrics exposes session progress as Prometheus counters.
//
// Counters are fed from the session event log through the recorder's event
// hook, so every stage that logs an event is counted without knowing about
// this package. Serve publishes the registry over HTTP.
package metrics
