// Package main provides the entry point for the DeskMaster CLI.
//
// DeskMaster drives a running Chrome through Naver Shopping search results:
// it opens listings whose review counts are in range, keeps the ones sold
// through the platform's own mall and closes the rest.
//
// Usage:
//
//	deskmaster run <keyword>...
//	deskmaster history list
//
// See --help for all available options.
package main

// main is the entry point for DeskMaster.
func main() {
	Execute()
}
