// Package model defines the core data structures used throughout histprobe.
//
// This package contains the following main types:
//   - Target: one address being tested for prior-visit status
//   - ProbeResult / ProbeSet: the per-probe outputs for one target
//   - CompositeResult: the fused verdict for one target
//   - DetectionSession: a full run over one target list
//   - Record: the persisted shape of a session
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The probe, aggregate, pipeline, session and report packages all
// need these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
