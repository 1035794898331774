// Package main provides the entry point for the histprobe CLI.
//
// histprobe measures which addresses from a target list appear in the
// visited history of a browser profile. It launches its own Chromium
// instance on the chosen profile, runs seven independent timing and style
// probes per target and fuses their outputs into one verdict.
//
// Usage:
//
//	histprobe detect <address>...
//	histprobe detect --list <file>
//	histprobe resume <session-id>
//
// See --help for all available options.
package main

// main is the entry point for histprobe.
func main() {
	Execute()
}
