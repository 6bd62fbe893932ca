// Package environment checks that the desktop matches the one the
// automation was calibrated for before anything is clicked.
package environment
