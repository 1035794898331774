package report

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nao1215/histprobe/internal/model"
)

// Writer defines the interface for report output.
// Implementations write detection results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files or stdout with the same
// API.
type Writer interface {
	// Write outputs the report of a session to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(sess *model.DetectionSession) (int, error)

	// WriteSummary outputs an already built summary.
	WriteSummary(summary *Summary) (int, error)

	// WriteComparison outputs the differences between two sessions.
	WriteComparison(cmp *Comparison) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(sess *model.DetectionSession) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.Write(sess) })
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *Summary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSummary(summary) })
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(cmp *Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(cmp) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// dateLayout is the timestamp format used by the text and markdown writers.
const dateLayout = "2006-01-02 15:04:05 MST"

// percent formats a ratio in [0, 1] as a whole percentage.
func percent(ratio float64) string {
	return strconv.Itoa(int(math.Round(ratio*100))) + "%"
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// probeList joins probe titles for display; "-" when empty.
func probeList(names []model.ProbeName) string {
	if len(names) == 0 {
		return "-"
	}
	titles := make([]string, len(names))
	for i, n := range names {
		titles[i] = n.Title()
	}
	return strings.Join(titles, ", ")
}
