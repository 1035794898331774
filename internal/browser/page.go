package browser

import (
	"context"
	_ "embed"
	"errors"
)

// Measurement functions exported by the in-page library.
const (
	FnPing         = "ping"
	FnRelease      = "release"
	FnFrameRender  = "frameRender"
	FnVisitedStyle = "visitedStyle"
	FnPingPong     = "pingPong"
	FnReflow       = "reflow"
	FnCacheTiming  = "cacheTiming"
)

// ErrBrowserClosed is returned when a call is made after Close.
var ErrBrowserClosed = errors.New("browser is closed")

// ErrScriptFailed is returned when the in-page function throws.
var ErrScriptFailed = errors.New("in-page measurement failed")

//go:embed scripts/probes.js
var library string

// Library returns the in-page measurement library source.
func Library() string {
	return library
}

// Page runs in-page measurement functions.
//
// Call invokes the library function fn with args (marshaled to JSON) and
// decodes the function's JSON result into out. Implementations must be safe
// for concurrent use; concurrent calls interleave in the page's event loop.
type Page interface {
	Call(ctx context.Context, fn string, args any, out any) error
}
