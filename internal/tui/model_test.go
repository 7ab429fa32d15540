package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/event"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseWaiting, "waiting"},
		{PhaseRecording, "recording"},
		{PhaseStitching, "stitching"},
		{PhaseDone, "done"},
		{PhaseCancelled, "cancelled"},
		{PhaseFailed, "failed"},
		{Phase(42), "Phase(42)"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}

func TestModel_AppliesEvents(t *testing.T) {
	m := New("scrollstitch", nil, Actions{})
	events := []event.Event{
		event.NewSessionStartedEvent("0123456789abcdef", 1, 1280, 800, 0),
		event.NewFrameCapturedEvent("0123456789abcdef", 1, 0, 1, 0),
		event.NewFrameCapturedEvent("0123456789abcdef", 1, 750, 2, 1),
		event.NewFrameSkippedEvent("0123456789abcdef", 1, 760),
		event.NewCaptureFailedEvent("0123456789abcdef", 1, 900, errors.ErrCaptureQuotaExceeded),
	}
	for _, e := range events {
		m, _ = update(t, m, eventMsg{event: e})
	}

	if m.Phase() != PhaseRecording {
		t.Errorf("phase = %v, want recording", m.Phase())
	}
	if m.Frames() != 2 || m.pending != 1 || m.skipped != 1 || m.failures != 1 || m.scrollY != 750 {
		t.Errorf("counters = frames %d pending %d skipped %d failures %d y %d",
			m.Frames(), m.pending, m.skipped, m.failures, m.scrollY)
	}

	view := m.View()
	for _, want := range []string{"scrollstitch", "recording", "01234567", "1280x800", "captured y=750", "rate limited", "finish"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_RecentIsBounded(t *testing.T) {
	m := New("t", nil, Actions{})
	for i := 0; i < maxRecent+4; i++ {
		m, _ = update(t, m, eventMsg{event: event.NewFrameSkippedEvent("s", 1, i)})
	}
	if len(m.recent) != maxRecent {
		t.Fatalf("recent = %d lines, want %d", len(m.recent), maxRecent)
	}
	if !strings.Contains(m.recent[len(m.recent)-1], "y=9") {
		t.Errorf("last line = %q, want the newest event", m.recent[len(m.recent)-1])
	}
}

func TestModel_Finish(t *testing.T) {
	calls := 0
	m := New("t", nil, Actions{
		Finish: func() (Result, error) {
			calls++
			return Result{Path: "/tmp/Screenshots/extended/screenshot_extended_x.png", Width: 200, Height: 1550, Frames: 2}, nil
		},
	})
	m, _ = update(t, m, eventMsg{event: event.NewSessionStartedEvent("s", 1, 200, 800, 0)})

	m, cmd := update(t, m, runes("f"))
	if m.Phase() != PhaseStitching {
		t.Fatalf("phase = %v, want stitching", m.Phase())
	}
	if cmd == nil {
		t.Fatal("finish should return a command")
	}

	// A second finish while stitching is ignored.
	if _, again := update(t, m, runes("f")); again != nil {
		t.Error("finish while stitching should be ignored")
	}
	// So is quitting.
	if _, quit := update(t, m, runes("q")); quit != nil {
		t.Error("quit while stitching should be ignored")
	}

	m, cmd = update(t, m, cmd())
	if calls != 1 {
		t.Errorf("Finish called %d times, want 1", calls)
	}
	if m.Phase() != PhaseDone || m.Result().Height != 1550 {
		t.Errorf("phase %v result %+v", m.Phase(), m.Result())
	}
	if !isQuit(cmd) {
		t.Error("a finished session should quit")
	}
	if view := m.View(); !strings.Contains(view, "screenshot_extended_x.png") || !strings.Contains(view, "200x1550") {
		t.Errorf("View() should show the saved file:\n%s", view)
	}
}

func TestModel_FinishFailure(t *testing.T) {
	m := New("t", nil, Actions{
		Finish: func() (Result, error) { return Result{}, errors.ErrNoFramesCaptured },
	})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd = update(t, m, cmd())

	if m.Phase() != PhaseFailed || !errors.Is(m.Err(), errors.ErrNoFramesCaptured) {
		t.Errorf("phase %v err %v", m.Phase(), m.Err())
	}
	if !isQuit(cmd) {
		t.Error("a failed session should quit")
	}
	if !strings.Contains(m.View(), "No frames were captured") {
		t.Errorf("View() should show a friendly message:\n%s", m.View())
	}
}

func TestModel_CancelKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"c", runes("c")},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}},
		{"q", runes("q")},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancelled := 0
			m := New("t", nil, Actions{Cancel: func() { cancelled++ }})

			m, cmd := update(t, m, tt.key)
			if cancelled != 1 || m.Phase() != PhaseCancelled {
				t.Errorf("cancelled %d phase %v", cancelled, m.Phase())
			}
			if !isQuit(cmd) {
				t.Error("cancel should quit")
			}
		})
	}
}

func TestModel_QuitAfterDone(t *testing.T) {
	cancelled := 0
	m := New("t", nil, Actions{Cancel: func() { cancelled++ }})
	m, _ = update(t, m, finishedMsg{result: Result{Path: "x.png"}})

	m, cmd := update(t, m, runes("q"))
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
	if cancelled != 0 || m.Phase() != PhaseDone {
		t.Errorf("quit after done must not cancel: cancelled %d phase %v", cancelled, m.Phase())
	}
	if _, cmd := update(t, m, runes("c")); cmd != nil {
		t.Error("cancel after done should be ignored")
	}
}

func TestModel_ExternalCancel(t *testing.T) {
	m := New("t", nil, Actions{})
	m, _ = update(t, m, eventMsg{event: event.NewSessionCancelledEvent("s", 1, "tab closed")})
	if m.Phase() != PhaseCancelled {
		t.Errorf("phase = %v, want cancelled", m.Phase())
	}
	if !strings.Contains(m.View(), "tab closed") {
		t.Errorf("View() should show the reason:\n%s", m.View())
	}
}

func TestSubscribe(t *testing.T) {
	bus := event.NewBus()
	ch, stop := Subscribe(bus, 2)

	bus.Publish(event.NewFrameSkippedEvent("s", 1, 10))
	bus.Publish(event.NewFrameSkippedEvent("s", 1, 20))
	bus.Publish(event.NewFrameSkippedEvent("s", 1, 30)) // dropped, buffer full

	msg := waitForEvent(ch)()
	em, ok := msg.(eventMsg)
	if !ok {
		t.Fatalf("got %T, want eventMsg", msg)
	}
	if e := em.event.(event.FrameSkippedEvent); e.ScrollY != 10 {
		t.Errorf("ScrollY = %d, want 10", e.ScrollY)
	}

	stop()
	stop()
	bus.Publish(event.NewFrameSkippedEvent("s", 1, 40))
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount = %d, want 0", bus.SubscriptionCount())
	}

	// The buffered event is still delivered, then the close.
	if _, ok := waitForEvent(ch)().(eventMsg); !ok {
		t.Error("expected the buffered event")
	}
	if _, ok := waitForEvent(ch)().(eventsClosedMsg); !ok {
		t.Error("expected eventsClosedMsg after stop")
	}
}

func TestWaitForEvent_NilChannel(t *testing.T) {
	if cmd := waitForEvent(nil); cmd != nil {
		t.Error("waitForEvent(nil) should return nil")
	}
}

func TestTruncate(t *testing.T) {
	styled := errorStyle.Render("capture failed at y=1200")
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"unknown width", "a long line", 0, "a long line"},
		{"fits", "short", 10, "short"},
		{"clipped", "a long line", 8, "a lon..."},
		{"tiny", "a long line", 2, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.width); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}

	if got := truncate(styled, 10); lipgloss.Width(got) > 10 {
		t.Errorf("styled line is %d columns wide, want at most 10", lipgloss.Width(got))
	}
}
