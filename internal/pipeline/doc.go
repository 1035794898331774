// Package pipeline drives a detection session through the probe suite.
//
// Work happens at three levels:
//   - Pipeline runs the per-target steps (probe suite, then aggregation)
//   - BatchProcessor runs one batch of targets concurrently
//   - Scheduler walks a session batch by batch, persisting after each one
//
// Design decision: The per-target work keeps the step model so extra stages
// (for example a second aggregation pass with different weights) can be added
// without touching the scheduler. Batching lives in its own type because the
// batch boundary is also the persistence and cancellation boundary.
package pipeline
