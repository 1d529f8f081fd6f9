// Package main provides the entry point for the webclone CLI.
//
// webclone copies a single web page together with the scripts, stylesheets,
// images and linked pages it references into a local folder that can be
// opened without network access.
//
// Usage:
//
//	webclone clone <url>...
//	webclone serve
//	webclone history
//
// See --help for all available options.
package main

// main is the entry point for webclone.
func main() {
	Execute()
}
