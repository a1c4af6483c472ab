// Package main provides the entry point for the pdfscrub CLI.
//
// pdfscrub removes active content (scripts, automatic actions, forms,
// annotations) from PDF documents and writes a cleaned copy of every
// input as <stem>_limpio.pdf.
//
// Usage:
//
//	pdfscrub clean <file.pdf>...
//	pdfscrub scan <file.pdf>...
//
// See --help for all available options.
package main

func main() {
	Execute()
}
