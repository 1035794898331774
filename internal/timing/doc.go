// Package timing turns raw render-timing samples into detection decisions.
//
// The package has two halves:
//   - Calibration: Calibrate reduces a set of control samples, measured against
//     a never-visited decoy address, into a robust Baseline.
//   - Decision: SpikeDecision, MeanShift and WindowRatio compare target
//     samples against that baseline.
//
// Design decision: All statistics run in Go rather than in the page. The page
// only returns numbers, which keeps the in-page script small and makes every
// threshold unit-testable without a browser.
//
// Baselines are recomputed for every probe invocation and never shared
// between targets, so slow drift in the browser (other tabs, GC pauses,
// thermal throttling) is absorbed by each measurement.
package timing
