// Package tui renders a live dashboard for a capture session: frames
// captured so far, the queue depth and recent events, with keys to finish
// or discard the recording.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/event"
	"github.com/Iron-Ham/scrollstitch/internal/output"
)

// maxRecent bounds the event log shown under the counters.
const maxRecent = 6

// Phase is where the dashboard is in the session lifecycle.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseRecording
	PhaseStitching
	PhaseDone
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseRecording:
		return "recording"
	case PhaseStitching:
		return "stitching"
	case PhaseDone:
		return "done"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// terminal reports whether the session can no longer change.
func (p Phase) terminal() bool {
	return p == PhaseDone || p == PhaseCancelled || p == PhaseFailed
}

// Result describes a saved capture.
type Result struct {
	Path   string
	Width  int
	Height int
	Frames int
}

// Actions connect the dashboard to the running session. Finish runs off
// the UI goroutine.
type Actions struct {
	Finish func() (Result, error)
	Cancel func()
}

// finishedMsg carries the outcome of Actions.Finish.
type finishedMsg struct {
	result Result
	err    error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	title   string
	events  <-chan event.Event
	actions Actions

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int

	phase          Phase
	sessionID      string
	viewportWidth  int
	viewportHeight int
	scrollY        int
	frames         int
	pending        int
	skipped        int
	failures       int
	recent         []string

	result Result
	err    error
}

// New creates a dashboard titled title that reads session events from
// events (see Subscribe).
func New(title string, events <-chan event.Event, actions Actions) Model {
	return Model{
		title:   title,
		events:  events,
		actions: actions,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
	}
}

// Phase returns the current phase.
func (m Model) Phase() Phase { return m.phase }

// Frames returns the number of frames the session holds.
func (m Model) Frames() int { return m.frames }

// Result returns the saved capture once the phase is PhaseDone.
func (m Model) Result() Result { return m.result }

// Err returns the error that ended the session, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.apply(msg.event)
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case finishedMsg:
		if msg.err != nil {
			m.phase = PhaseFailed
			m.err = msg.err
		} else {
			m.phase = PhaseDone
			m.result = msg.result
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := m.phase == PhaseWaiting || m.phase == PhaseRecording

	switch {
	case key.Matches(msg, m.keys.Finish):
		if !active || m.actions.Finish == nil {
			return m, nil
		}
		m.phase = PhaseStitching
		finish := m.actions.Finish
		return m, func() tea.Msg {
			res, err := finish()
			return finishedMsg{result: res, err: err}
		}

	case key.Matches(msg, m.keys.Cancel):
		if !active {
			return m, nil
		}
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Quit):
		if m.phase == PhaseStitching {
			// The result is about to be written; wait for it.
			return m, nil
		}
		if active {
			m.cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) cancel() {
	if m.actions.Cancel != nil {
		m.actions.Cancel()
	}
	m.phase = PhaseCancelled
}

// apply folds one session event into the counters.
func (m *Model) apply(e event.Event) {
	switch e := e.(type) {
	case event.SessionStartedEvent:
		if m.phase == PhaseWaiting {
			m.phase = PhaseRecording
		}
		m.sessionID = e.SessionID
		m.viewportWidth = e.ViewportWidth
		m.viewportHeight = e.ViewportHeight
		m.scrollY = e.ScrollY
		m.log(mutedStyle.Render(fmt.Sprintf("session started, viewport %dx%d", e.ViewportWidth, e.ViewportHeight)))

	case event.FrameCapturedEvent:
		m.scrollY = e.ScrollY
		m.frames = e.Frames
		m.pending = e.Pending
		m.log(successStyle.Render(fmt.Sprintf("captured y=%d", e.ScrollY)))

	case event.FrameSkippedEvent:
		m.skipped++
		m.log(mutedStyle.Render(fmt.Sprintf("skipped y=%d (already covered)", e.ScrollY)))

	case event.CaptureFailedEvent:
		m.failures++
		m.log(warningStyle.Render(fmt.Sprintf("capture failed at y=%d: %s", e.ScrollY, errors.FriendlyMessage(e.Err))))

	case event.SessionFinishedEvent:
		m.frames = e.Frames
		m.log(successStyle.Render(fmt.Sprintf("stitched %d frames into %dx%d", e.Frames, e.Width, e.Height)))

	case event.SessionCancelledEvent:
		if !m.phase.terminal() {
			m.phase = PhaseCancelled
		}
		m.log(warningStyle.Render("session cancelled: " + e.Reason))
	}
}

// truncate clips a styled line to width columns. A width of zero means
// the terminal size is not known yet.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return ansi.Truncate(s, width, "...")
}

func (m *Model) log(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	rows := []string{
		row("Frames", fmt.Sprintf("%d", m.frames)),
		row("Pending", fmt.Sprintf("%d", m.pending)),
		row("Skipped", fmt.Sprintf("%d", m.skipped)),
		row("Failures", fmt.Sprintf("%d", m.failures)),
		row("Scroll Y", fmt.Sprintf("%d", m.scrollY)),
	}
	if m.viewportWidth > 0 {
		rows = append(rows, row("Viewport", fmt.Sprintf("%dx%d", m.viewportWidth, m.viewportHeight)))
	}
	b.WriteString(panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n")

	for i, line := range m.recent {
		if i == 0 {
			b.WriteString("\n")
		}
		b.WriteString(truncate(line, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if !m.phase.terminal() {
		b.WriteString(m.help.View(m.keys))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) statusLine() string {
	switch m.phase {
	case PhaseWaiting:
		return m.spinner.View() + " " + subtitleStyle.Render("waiting for the first frame")
	case PhaseRecording:
		return m.spinner.View() + " " + valueStyle.Render("recording") + mutedStyle.Render(" session "+shortID(m.sessionID))
	case PhaseStitching:
		return m.spinner.View() + " " + valueStyle.Render("stitching")
	case PhaseDone:
		return successStyle.Render(fmt.Sprintf("✓ saved %s (%dx%d, %d frames)",
			output.DisplayName(m.result.Path), m.result.Width, m.result.Height, m.result.Frames))
	case PhaseCancelled:
		return warningStyle.Render("✗ discarded")
	case PhaseFailed:
		return errorStyle.Render("✗ " + errors.FriendlyMessage(m.err))
	}
	return ""
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
