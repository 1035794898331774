// Package probe implements the seven visited-state measurement strategies.
//
// Each probe drives one function of the in-page measurement library through
// a browser.Page, then applies its decision rule in Go:
//   - FrameRenderProbe: per-frame render spikes after a link perturbation
//   - VisitedStyleProbe: computed style of :visited-conditional links
//   - TransformProbe and VectorFillProbe: control/test window ratios
//   - FilterChainProbe and ReflowProbe: forced-reflow mean shift over a
//     decoy baseline
//   - CacheTimingProbe: processing time of a guessed script from the
//     target origin
//
// Design decision: Probes fail open. Any error, timeout or panic inside a
// probe yields Detected=false for that probe only. An inconclusive probe
// must never block its siblings or the batch it runs in, so Probe.Run has no
// error return at all.
//
// Suite runs every registered probe for one target concurrently and returns
// a complete model.ProbeSet.
package probe
