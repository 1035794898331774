package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/histprobe/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because the session record already round-trips through it in
// both stores; a report must produce exactly the same document.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written into full reports when non-empty.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the histprobe version in full reports.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the full report document: the stored session record plus
// its summary.
//
// Design decision: We wrap the record rather than adding fields to it so
// output-specific data never leaks into the stored document.
type JSONReport struct {
	// Version is the histprobe version that generated this report.
	Version string `json:"version,omitempty"`

	// Session is the session in its stored shape.
	Session model.Record `json:"session"`

	// Summary is the digest for quick access.
	Summary *Summary `json:"summary"`
}

// NewJSONReport creates a JSONReport for a session.
func NewJSONReport(sess *model.DetectionSession, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Session: model.ToRecord(sess),
		Summary: NewSummary(sess),
	}
}

// Write outputs the full report in JSON format.
func (w *JSONWriter) Write(sess *model.DetectionSession) (int, error) {
	return w.writeJSON(NewJSONReport(sess, w.version))
}

// WriteSummary outputs only the summary in JSON format.
func (w *JSONWriter) WriteSummary(summary *Summary) (int, error) {
	return w.writeJSON(summary)
}

// WriteComparison outputs the comparison in JSON format.
func (w *JSONWriter) WriteComparison(c *Comparison) (int, error) {
	return w.writeJSON(c)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
