// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown output for sharing and archiving
//
// Design decision: We separate report writing from the session data
// structures (which are in the model package). Writers consume a Summary,
// a read-only digest of a DetectionSession with per-category and per-probe
// totals, so every format shows the same numbers.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
