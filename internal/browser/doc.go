// Package browser drives the browser profile under test.
//
// The package exposes a small surface to the probes:
//   - Page: calls a named measurement function inside a scratch page and
//     decodes its JSON result.
//   - Arena: hands out uniquely named fixtures so concurrent probe
//     invocations never share DOM nodes, style sheets or class names.
//   - Chrome: a Page implementation backed by a Chromium instance launched
//     through the DevTools protocol (github.com/chromedp/chromedp).
//
// Design decision: Probes talk to a Page interface instead of chromedp
// directly. The measurement functions return plain numbers, so probe logic
// can be tested with a fake page that returns canned samples, and a real
// browser is only needed at the command line.
//
// histprobe only probes a browser it launches itself. The operator chooses
// the profile (user data directory) to inspect; no page is ever served to
// other people.
package browser
