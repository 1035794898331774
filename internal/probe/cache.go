package probe

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
)

// Reply kinds sent by the isolated frame.
const (
	replyResult  = "result"
	replyError   = "error"
	replyTimeout = "timeout"
)

// errNoOrigin is returned when the target has no usable origin.
var errNoOrigin = errors.New("target has no http(s) origin")

// CacheTimingProbe loads a guessed script from the target's origin inside an
// isolated frame and measures processing time net of transfer time. Fast
// processing suggests the origin's resources were recently used by this
// profile; it is a proxy for "this origin was active", not for "this exact
// link was visited".
//
// The frame answers once on a private message channel. The in-page side
// gives up after Timeout and replies "timeout"; the Go side never waits for
// more than the page call timeout.
type CacheTimingProbe struct {
	env
	params CacheTimingParams
}

type cacheTimingArgs struct {
	Fixture   string `json:"fixture"`
	Src       string `json:"src"`
	TimeoutMs int64  `json:"timeoutMs"` //nolint:tagliatelle // in-page argument name
	SettleMs  int64  `json:"settleMs"`  //nolint:tagliatelle // in-page argument name
}

type cacheTimingReply struct {
	Kind       string   `json:"kind"`
	Processing *float64 `json:"processing"`
	Load       *float64 `json:"load"`
}

// NewCacheTimingProbe creates a CacheTimingProbe.
func NewCacheTimingProbe(page browser.Page, arena *browser.Arena, params CacheTimingParams, opts ...Option) *CacheTimingProbe {
	return &CacheTimingProbe{env: newEnv(page, arena, opts), params: params}
}

// Name returns the probe name.
func (p *CacheTimingProbe) Name() model.ProbeName {
	return model.ProbeCacheTiming
}

// Run measures target.
func (p *CacheTimingProbe) Run(ctx context.Context, target string) model.ProbeResult {
	return p.run(ctx, p.Name(), target, func(ctx context.Context, fixture string) (model.ProbeResult, error) {
		src, err := ScriptURL(target, p.params.ScriptPath)
		if err != nil {
			return model.ProbeResult{}, err
		}

		var reply cacheTimingReply
		err = p.page.Call(ctx, browser.FnCacheTiming, cacheTimingArgs{
			Fixture:   fixture,
			Src:       src,
			TimeoutMs: p.params.Timeout.Milliseconds(),
			SettleMs:  p.params.Settle.Milliseconds(),
		}, &reply)
		if err != nil {
			return model.ProbeResult{}, err
		}

		result := p.decide(reply)
		p.logger.Debug("cache timing measured",
			"target", target,
			"reply", reply.Kind,
			"metric_ms", result.Metric,
			"detected", result.Detected,
		)
		return result, nil
	})
}

func (p *CacheTimingProbe) decide(reply cacheTimingReply) model.ProbeResult {
	if reply.Kind != replyResult {
		return model.ProbeResult{}
	}
	switch {
	case reply.Processing != nil:
		return model.ProbeResult{
			Detected: *reply.Processing < p.params.ProcessingThreshold,
			Metric:   *reply.Processing,
		}
	case reply.Load != nil:
		return model.ProbeResult{
			Detected: *reply.Load < p.params.LoadThreshold,
			Metric:   *reply.Load,
		}
	default:
		return model.ProbeResult{}
	}
}

// ScriptURL builds the cache-busted script address on target's origin.
func ScriptURL(target, scriptPath string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errNoOrigin
	}
	if !strings.HasPrefix(scriptPath, "/") {
		scriptPath = "/" + scriptPath
	}
	bust := strings.ReplaceAll(uuid.NewString(), "-", "")
	return u.Scheme + "://" + u.Host + scriptPath + "?_=" + bust, nil
}
