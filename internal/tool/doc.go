// Package tool talks to the out-of-process helpers used by the automation:
// a vision model that reads CAPTCHA images and an OCR engine used when the
// accessibility tree exposes no review counts.
//
// Each helper is an MCP server launched over stdio on first use and shut
// down with the session.
package tool
