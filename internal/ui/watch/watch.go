// Package watch implements the live progress view of a detection session.
//
// The view never talks to the scheduler. It polls the session store, so it
// can follow a detection running in the same process (detect --watch) or in
// another histprobe process that shares the database.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/report"
	"github.com/nao1215/histprobe/internal/ui/theme"
)

// DefaultInterval is the store polling interval.
const DefaultInterval = 500 * time.Millisecond

// maxRecent is the number of visited targets listed under the progress bar.
const maxRecent = 8

// Loader reads a session snapshot.
type Loader interface {
	Get(ctx context.Context, id string) (*model.DetectionSession, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type loadedMsg struct {
	sess *model.DetectionSession
	err  error
}

type tickMsg struct{}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the Bubble Tea model of the watch view.
type Model struct {
	ctx      context.Context
	loader   Loader
	id       string
	interval time.Duration
	exitDone bool

	summary  *report.Summary
	err      error
	spinner  spinner.Model
	progress progress.Model
	width    int
	done     bool
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithExitOnComplete makes the view quit once the session is completed.
func WithExitOnComplete(exit bool) Option {
	return func(m *Model) {
		m.exitDone = exit
	}
}

// New creates the watch view of session id.
func New(ctx context.Context, loader Loader, id string, opts ...Option) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	m := Model{
		ctx:      ctx,
		loader:   loader,
		id:       id,
		interval: DefaultInterval,
		spinner:  sp,
		progress: progress.New(progress.WithGradient(string(theme.Sapphire), string(theme.Lavender))),
		width:    80,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the first load and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, min(msg.Width-4, 80))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		}
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, model.ErrSessionNotFound) {
				return m, tea.Quit
			}
			return m, m.tickCmd()
		}
		m.err = nil
		m.summary = report.NewSummary(msg.sess)
		if msg.sess.Completed {
			m.done = true
			if m.exitDone {
				return m, tea.Quit
			}
			return m, nil
		}
		return m, m.tickCmd()

	case tickMsg:
		return m, m.loadCmd()

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) loadCmd() tea.Cmd {
	ctx, loader, id := m.ctx, m.loader, m.id
	return func() tea.Msg {
		sess, err := loader.Get(ctx, id)
		return loadedMsg{sess: sess, err: err}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Done reports whether the session was seen completed.
func (m Model) Done() bool {
	return m.done
}

// Err returns the last load error, if any.
func (m Model) Err() error {
	return m.err
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("histprobe") + "  " + theme.Muted.Render(m.id))
	sb.WriteString("\n\n")

	if m.summary == nil {
		if m.err != nil {
			sb.WriteString(theme.Failure.Render("error: "+m.err.Error()) + "\n")
		} else {
			sb.WriteString(m.spinner.View() + " Loading session…\n")
		}
		return sb.String()
	}

	s := m.summary
	ratio := 0.0
	if s.Targets > 0 {
		ratio = float64(s.Resolved) / float64(s.Targets)
	}

	status := m.spinner.View() + " Running"
	if m.done {
		status = theme.Done.Render("✓ Completed")
	}
	fmt.Fprintf(&sb, "%s  %d/%d resolved\n", status, s.Resolved, s.Targets)
	sb.WriteString(m.progress.ViewAs(ratio) + "\n\n")

	fmt.Fprintf(&sb, "Visited: %s  (high %d · medium %d · low %d)\n",
		theme.Hot.Render(fmt.Sprint(s.Visited)), s.HighConfidence, s.MediumConfidence, s.LowConfidence)

	if len(s.Categories) > 1 {
		parts := make([]string, 0, len(s.Categories))
		for _, c := range s.Categories {
			parts = append(parts, fmt.Sprintf("%s %d/%d", c.Title, c.Visited, c.Resolved))
		}
		sb.WriteString(theme.Muted.Render(strings.Join(parts, " · ")) + "\n")
	}

	if visited := s.VisitedVerdicts(); len(visited) > 0 {
		var lines []string
		for i, v := range visited {
			if i == maxRecent {
				lines = append(lines, theme.Muted.Render(fmt.Sprintf("… and %d more", len(visited)-maxRecent)))
				break
			}
			lines = append(lines, fmt.Sprintf("%s %-28s %.2f %s", theme.Hot.Render("●"), truncate(v.Name, 28), v.Score, confidence(v.Confidence)))
		}
		sb.WriteString("\n" + theme.Pane.Render(strings.Join(lines, "\n")) + "\n")
	}

	if m.err != nil {
		sb.WriteString("\n" + theme.Failure.Render("refresh failed: "+m.err.Error()) + "\n")
	}

	sb.WriteString("\n" + theme.Muted.Render("r refresh · q quit") + "\n")
	return sb.String()
}

func confidence(c model.Confidence) string {
	switch c {
	case model.ConfidenceHigh:
		return theme.Failure.Render(c.String())
	case model.ConfidenceMedium:
		return theme.Medium.Render(c.String())
	default:
		return theme.Muted.Render(c.String())
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run shows the watch view until the user quits, ctx is cancelled or, with
// WithExitOnComplete, the session completes. The final model is returned.
func Run(ctx context.Context, loader Loader, id string, in io.Reader, out io.Writer, opts ...Option) (Model, error) {
	program := tea.NewProgram(
		New(ctx, loader, id, opts...),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Model{}, err
	}
	m, _ := final.(Model)
	return m, nil
}
