// Package scanner finds listings on a search results page whose review
// count falls in the configured range, and opens them in background tabs.
//
// A scan makes several scroll passes. Each pass queries the accessibility
// tree for review labels such as "리뷰 1,234", reads the count, and walks
// from the label to the clickable element of the listing: first up through
// at most ParentDepth ancestors, then across the label's siblings. When the
// tree exposes no review label at all, the viewport is captured and run
// through OCR; OCR text carries no element to click, so it only reports the
// counts it saw.
package scanner
