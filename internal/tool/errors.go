package tool

import "errors"

var (
	// ErrUnknownTool is returned when a tool names a server that is not configured.
	ErrUnknownTool = errors.New("tool server not configured")

	// ErrToolFailed is returned when a server cannot be started or the call fails.
	ErrToolFailed = errors.New("tool call failed")

	// ErrEmptyResult is returned when a tool answers without usable text.
	ErrEmptyResult = errors.New("tool returned no text")

	// ErrInvalidConfidence is returned when a solution states a confidence
	// that is neither a fraction nor a percentage.
	ErrInvalidConfidence = errors.New("tool returned an invalid confidence")
)
