package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// scratchURL is the document probes run in. A blank document keeps the
// page's own rendering cost out of the measurements.
const scratchURL = "about:blank"

// Chrome manages a Chromium instance launched over the DevTools protocol and
// implements Page on its first tab.
//
// Design decision: One tab serves every probe. Probe invocations are
// isolated by fixtures (see Arena), and sharing one renderer keeps the
// timing conditions of concurrent probes comparable, the way a single page
// would run them side by side.
type Chrome struct {
	execPath    string
	userDataDir string
	headless    bool
	callTimeout time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// ChromeOption configures a Chrome instance.
type ChromeOption func(*Chrome)

// WithExecPath sets the browser executable. Empty means auto-detect.
func WithExecPath(path string) ChromeOption {
	return func(c *Chrome) {
		c.execPath = path
	}
}

// WithUserDataDir selects the browser profile whose history is measured.
// Empty means a fresh temporary profile.
func WithUserDataDir(dir string) ChromeOption {
	return func(c *Chrome) {
		c.userDataDir = dir
	}
}

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) ChromeOption {
	return func(c *Chrome) {
		c.headless = headless
	}
}

// WithCallTimeout bounds every in-page call.
func WithCallTimeout(timeout time.Duration) ChromeOption {
	return func(c *Chrome) {
		c.callTimeout = timeout
	}
}

// WithLogger sets the logger for browser events.
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(c *Chrome) {
		c.logger = logger
	}
}

// NewChrome creates a browser manager. Call Start to launch the browser.
func NewChrome(opts ...ChromeOption) *Chrome {
	c := &Chrome{
		headless:    true,
		callTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the browser, opens the scratch tab and installs the
// measurement library. The browser outlives ctx; call Stop to shut it down.
func (c *Chrome) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabCtx != nil {
		return nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(1280, 800),
	)
	if c.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.execPath))
	}
	if c.userDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(c.userDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			c.logger.Warn(fmt.Sprintf(format, args...))
		}),
	)

	startCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx, chromedp.Navigate(scratchURL)); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	c.allocCancel = allocCancel
	c.tabCtx = tabCtx
	c.tabCancel = tabCancel

	c.logger.Debug("browser started", "headless", c.headless, "profile", c.userDataDir != "")
	return nil
}

// Stop closes the browser. It is safe to call on a stopped instance.
func (c *Chrome) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabCtx == nil {
		return nil
	}
	c.tabCancel()
	c.allocCancel()
	c.tabCtx = nil
	c.tabCancel = nil
	c.allocCancel = nil
	return nil
}

// IsRunning reports whether the browser has been started and not stopped.
func (c *Chrome) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tabCtx != nil
}

// Call implements Page.
func (c *Chrome) Call(ctx context.Context, fn string, args any, out any) error {
	c.mu.Lock()
	tabCtx := c.tabCtx
	c.mu.Unlock()
	if tabCtx == nil {
		return ErrBrowserClosed
	}

	expr, err := Expression(fn, args)
	if err != nil {
		return err
	}

	// Cancelling a plain child of the tab context aborts the evaluation
	// without closing the tab.
	runCtx, cancel := context.WithTimeout(tabCtx, c.callTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var raw []byte
	err = chromedp.Run(runCtx, chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %w", ErrScriptFailed, fn, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", fn, err)
	}
	return nil
}

// Expression builds the JavaScript evaluated for one call. The library is
// installed on first use and the named function is awaited with args.
func Expression(fn string, args any) (string, error) {
	if fn == "" || strings.ContainsAny(fn, "\"'`\\()[];") {
		return "", errors.New("invalid function name")
	}
	if args == nil {
		args = struct{}{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s arguments: %w", fn, err)
	}

	var b strings.Builder
	b.WriteString("(async () => {\n")
	b.WriteString(library)
	b.WriteString("\nreturn await window.__hp[\"")
	b.WriteString(fn)
	b.WriteString("\"](")
	b.Write(payload)
	b.WriteString(");\n})()")
	return b.String(), nil
}
