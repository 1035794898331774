package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/histprobe/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides type-safe tables, GitHub alerts and mermaid
// charts without hand-escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report of a session in Markdown format.
func (w *MarkdownWriter) Write(sess *model.DetectionSession) (int, error) {
	return w.WriteSummary(NewSummary(sess))
}

// WriteSummary outputs the summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeDetection(md, s)
	w.writeCategories(md, s)
	w.writeProbes(md, s)
	w.writeVerdicts(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("histprobe Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + s.SessionID + "`"},
			{"Created", s.CreatedAt.Format(dateLayout)},
			{"Targets", strconv.Itoa(s.Targets)},
			{"Status", statusText(s)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on session state.
func statusText(s *Summary) string {
	switch s.State {
	case model.SessionCompleted:
		return "✅ Complete"
	case model.SessionRunning:
		return fmt.Sprintf("⚠️ Incomplete (%d of %d resolved)", s.Resolved, s.Targets)
	default:
		return "⏸️ Not started"
	}
}

// writeDetection writes the verdict counts, chart and alert.
func (w *MarkdownWriter) writeDetection(md *markdown.Markdown, s *Summary) {
	md.H2("Detection Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Verdict", "Count"},
		Rows: [][]string{
			{"🟠 Visited (high)", strconv.Itoa(s.HighConfidence)},
			{"🟡 Visited (medium)", strconv.Itoa(s.MediumConfidence)},
			{"🔵 Visited (low)", strconv.Itoa(s.LowConfidence)},
			{"⚪ Not visited", strconv.Itoa(s.Resolved - s.Visited)},
			{"⏳ Pending", strconv.Itoa(s.Pending())},
			{"**Visited rate**", "**" + percent(s.VisitedRate()) + "**"},
		},
	})
	md.PlainText("")

	if s.Resolved > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of the verdict distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Verdict Distribution"),
		piechart.WithShowData(true),
	)

	if s.Visited > 0 {
		chart.LabelAndIntValue("Visited", uint64(s.Visited))
	}
	if notVisited := s.Resolved - s.Visited; notVisited > 0 {
		chart.LabelAndIntValue("Not visited", uint64(notVisited))
	}
	if s.Pending() > 0 {
		chart.LabelAndIntValue("Pending", uint64(s.Pending()))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert that matches the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Pending() > 0 && s.State != model.SessionCreated:
		md.Warningf(
			"The session is incomplete: %d target(s) have no verdict yet. Run `histprobe resume %s` to finish it.",
			s.Pending(), s.SessionID,
		)
	case s.HighConfidence > 0:
		md.Importantf(
			"%d target(s) were judged visited with high confidence.",
			s.HighConfidence,
		)
	case s.HasVisited():
		md.Note("Only medium or low confidence visits were detected. A single firing probe is enough to mark a target visited.")
	default:
		md.Tip("No visited targets were detected.")
	}
	md.PlainText("")
}

// writeCategories writes the per-category table.
func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, s *Summary) {
	md.H2("By Category")
	md.PlainText("")

	rows := make([][]string, len(s.Categories))
	for i, c := range s.Categories {
		rows[i] = []string{
			c.Title,
			strconv.Itoa(c.Targets),
			strconv.Itoa(c.Resolved),
			strconv.Itoa(c.Visited),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Targets", "Resolved", "Visited"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeProbes writes the per-probe table.
func (w *MarkdownWriter) writeProbes(md *markdown.Markdown, s *Summary) {
	md.H2("By Probe")
	md.PlainText("")

	rows := make([][]string, len(s.Probes))
	for i, p := range s.Probes {
		rows[i] = []string{
			p.Title,
			"`" + string(p.Probe) + "`",
			strconv.Itoa(p.Ran),
			strconv.Itoa(p.Detected),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Probe", "Name", "Ran", "Detected"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeVerdicts writes the table of visited targets.
func (w *MarkdownWriter) writeVerdicts(md *markdown.Markdown, s *Summary) {
	md.H2("Visited Targets")
	md.PlainText("")

	visited := s.VisitedVerdicts()
	if len(visited) == 0 {
		md.PlainText("No visited targets detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(visited))
	for i, v := range visited {
		rows[i] = []string{
			truncateString(v.Name, 40),
			truncateString(v.URL, 50),
			strconv.FormatFloat(v.Score, 'f', 2, 64),
			v.Confidence.String(),
			probeList(v.Probes),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "URL", "Score", "Confidence", "Probes"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [histprobe](https://github.com/nao1215/histprobe)*")
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(c *Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Session Comparison")
	md.PlainText("")
	md.PlainTextf("**Visited:** %s", directionText(c.Direction))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Session", "`" + c.Previous.ID + "`", "`" + c.Current.ID + "`", "-"},
			{"Created", c.Previous.CreatedAt.Format(dateLayout), c.Current.CreatedAt.Format(dateLayout), "-"},
			{"Targets", strconv.Itoa(c.Previous.Targets), strconv.Itoa(c.Current.Targets), formatDelta(c.Current.Targets - c.Previous.Targets)},
			{"Resolved", strconv.Itoa(c.Previous.Resolved), strconv.Itoa(c.Current.Resolved), formatDelta(c.Current.Resolved - c.Previous.Resolved)},
			{"**Visited**", "**" + strconv.Itoa(c.Previous.Visited) + "**", "**" + strconv.Itoa(c.Current.Visited) + "**", "**" + formatDelta(c.VisitedDelta) + "**"},
		},
	})
	md.PlainText("")

	if len(c.NewlyVisited) > 0 {
		md.H2(fmt.Sprintf("Newly Visited (%d)", len(c.NewlyVisited)))
		md.PlainText("")
		items := make([]string, len(c.NewlyVisited))
		for i, v := range c.NewlyVisited {
			items[i] = fmt.Sprintf("**%s** `%s` (%.2f, %s)", v.Name, v.URL, v.Score, v.Confidence)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(c.NoLongerVisited) > 0 {
		md.H2(fmt.Sprintf("No Longer Visited (%d)", len(c.NoLongerVisited)))
		md.PlainText("")
		items := make([]string, len(c.NoLongerVisited))
		for i, v := range c.NoLongerVisited {
			items[i] = fmt.Sprintf("~~**%s** `%s`~~", v.Name, v.URL)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(c.Added) > 0 || len(c.Removed) > 0 {
		md.H2("Target List Changes")
		md.PlainText("")
		items := make([]string, 0, len(c.Added)+len(c.Removed))
		for _, u := range c.Added {
			items = append(items, "added `"+u+"`")
		}
		for _, u := range c.Removed {
			items = append(items, "removed `"+u+"`")
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d targets unchanged*", c.UnchangedCount)
	}

	return len(md.String()), md.Build()
}
