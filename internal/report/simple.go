package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/histprobe/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
//
// Design decision: Styling goes through a lipgloss renderer bound to the
// output. When the output is not a terminal (a file, a pipe, a test buffer)
// or NO_COLOR is set, the renderer falls back to plain ASCII, so the same
// writer serves both cases.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists targets judged not visited as well.
	verbose bool

	styles simpleStyles
}

type simpleStyles struct {
	title   lipgloss.Style
	section lipgloss.Style
	visited lipgloss.Style
	muted   lipgloss.Style
	high    lipgloss.Style
	medium  lipgloss.Style
}

func newSimpleStyles(r *lipgloss.Renderer) simpleStyles {
	return simpleStyles{
		title:   r.NewStyle().Bold(true),
		section: r.NewStyle().Foreground(lipgloss.Color("#74c7ec")).Bold(true),
		visited: r.NewStyle().Foreground(lipgloss.Color("#fab387")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#a6adc8")),
		high:    r.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
		medium:  r.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
	}
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		styles:     newSimpleStyles(lipgloss.NewRenderer(output)),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report of a session in human-readable format.
func (w *SimpleWriter) Write(sess *model.DetectionSession) (int, error) {
	return w.WriteSummary(NewSummary(sess))
}

// WriteSummary outputs the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeDetection(&sb, summary)
	w.writeCategories(&sb, summary)
	w.writeProbes(&sb, summary)
	w.writeVerdicts(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with session information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(w.styles.title.Render("                         HISTPROBE REPORT"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Session:   %s\n", s.SessionID)
	fmt.Fprintf(sb, "Created:   %s\n", s.CreatedAt.Format(dateLayout))
	fmt.Fprintf(sb, "Targets:   %d (%d resolved, %d pending)\n", s.Targets, s.Resolved, s.Pending())

	switch s.State {
	case model.SessionCompleted:
		sb.WriteString("Status:    Complete\n")
	case model.SessionRunning:
		sb.WriteString("Status:    INCOMPLETE (resume to finish)\n")
	default:
		sb.WriteString("Status:    Not started\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(w.styles.section.Render(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeDetection writes the overall verdict counts.
func (w *SimpleWriter) writeDetection(sb *strings.Builder, s *Summary) {
	w.section(sb, "DETECTION SUMMARY")

	fmt.Fprintf(sb, "  VISITED:  %d of %d resolved (%s)\n", s.Visited, s.Resolved, percent(s.VisitedRate()))
	fmt.Fprintf(sb, "    high:   %d\n", s.HighConfidence)
	fmt.Fprintf(sb, "    medium: %d\n", s.MediumConfidence)
	fmt.Fprintf(sb, "    low:    %d\n", s.LowConfidence)
	sb.WriteString("\n")
}

// writeCategories writes the per-category table.
func (w *SimpleWriter) writeCategories(sb *strings.Builder, s *Summary) {
	if len(s.Categories) <= 1 && !w.showEmpty {
		return
	}

	w.section(sb, "BY CATEGORY")

	fmt.Fprintf(sb, "  %-24s  %8s  %8s  %8s\n", "Category", "Targets", "Resolved", "Visited")
	sb.WriteString("  " + strings.Repeat("-", 54) + "\n")
	for _, c := range s.Categories {
		fmt.Fprintf(sb, "  %-24s  %8d  %8d  %8d\n", truncateString(c.Title, 24), c.Targets, c.Resolved, c.Visited)
	}
	sb.WriteString("\n")
}

// writeProbes writes how often each probe ran and fired.
func (w *SimpleWriter) writeProbes(sb *strings.Builder, s *Summary) {
	w.section(sb, "BY PROBE")

	fmt.Fprintf(sb, "  %-20s  %8s  %8s\n", "Probe", "Ran", "Detected")
	sb.WriteString("  " + strings.Repeat("-", 40) + "\n")
	for _, p := range s.Probes {
		if p.Ran == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-20s  %8d  %8d\n", p.Title, p.Ran, p.Detected)
	}
	sb.WriteString("\n")
}

// writeVerdicts writes the visited targets, and in verbose mode the others.
func (w *SimpleWriter) writeVerdicts(sb *strings.Builder, s *Summary) {
	visited := s.VisitedVerdicts()
	if len(visited) == 0 && !w.showEmpty && !w.verbose {
		return
	}

	w.section(sb, "VISITED TARGETS")

	if len(visited) == 0 {
		sb.WriteString("  No visited targets detected\n\n")
	}
	for _, v := range visited {
		w.writeVerdict(sb, v)
	}
	if len(visited) > 0 {
		sb.WriteString("\n")
	}

	if !w.verbose {
		return
	}

	w.section(sb, "NOT VISITED")
	for _, v := range s.Verdicts {
		if v.Visited {
			continue
		}
		fmt.Fprintf(sb, "  [ ] %s\n", v.Name)
		fmt.Fprintf(sb, "      %s\n", w.styles.muted.Render(v.URL))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeVerdict(sb *strings.Builder, v Verdict) {
	conf := v.Confidence.String()
	switch v.Confidence {
	case model.ConfidenceHigh:
		conf = w.styles.high.Render(conf)
	case model.ConfidenceMedium:
		conf = w.styles.medium.Render(conf)
	}

	fmt.Fprintf(sb, "  %s %s\n", w.styles.visited.Render("[+]"), v.Name)
	fmt.Fprintf(sb, "      URL:        %s\n", v.URL)
	fmt.Fprintf(sb, "      Score:      %.2f (%s)\n", v.Score, conf)
	fmt.Fprintf(sb, "      Probes:     %s\n", probeList(v.Probes))
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by histprobe\n")
	sb.WriteString("https://github.com/nao1215/histprobe\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(c *Comparison) (int, error) {
	var sb strings.Builder

	sb.WriteString(w.styles.title.Render("Session Comparison"))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Previous: %s  %s\n", c.Previous.ID, c.Previous.CreatedAt.Format(dateLayout))
	fmt.Fprintf(&sb, "Current:  %s  %s\n", c.Current.ID, c.Current.CreatedAt.Format(dateLayout))
	fmt.Fprintf(&sb, "\nVisited: %d -> %d (%s, %s)\n",
		c.Previous.Visited, c.Current.Visited, formatDelta(c.VisitedDelta), directionText(c.Direction))

	if len(c.NewlyVisited) > 0 {
		fmt.Fprintf(&sb, "\nNewly visited (%d):\n", len(c.NewlyVisited))
		for _, v := range c.NewlyVisited {
			fmt.Fprintf(&sb, "  [+] %s  %s  %.2f %s\n", v.Name, v.URL, v.Score, v.Confidence)
		}
	}

	if len(c.NoLongerVisited) > 0 {
		fmt.Fprintf(&sb, "\nNo longer visited (%d):\n", len(c.NoLongerVisited))
		for _, v := range c.NoLongerVisited {
			fmt.Fprintf(&sb, "  [-] %s  %s\n", v.Name, v.URL)
		}
	}

	if len(c.Added) > 0 {
		fmt.Fprintf(&sb, "\nOnly in current (%d):\n", len(c.Added))
		for _, u := range c.Added {
			fmt.Fprintf(&sb, "  %s\n", u)
		}
	}

	if len(c.Removed) > 0 {
		fmt.Fprintf(&sb, "\nOnly in previous (%d):\n", len(c.Removed))
		for _, u := range c.Removed {
			fmt.Fprintf(&sb, "  %s\n", u)
		}
	}

	if c.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d targets\n", c.UnchangedCount)
	}

	return io.WriteString(w.output, sb.String())
}

// directionText formats a comparison direction for display.
func directionText(direction string) string {
	switch direction {
	case DirectionMore:
		return "MORE visited"
	case DirectionFewer:
		return "FEWER visited"
	default:
		return "UNCHANGED"
	}
}
