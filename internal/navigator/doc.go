// Package navigator checks the sort and display presets of the result
// list and moves through its pages.
package navigator
