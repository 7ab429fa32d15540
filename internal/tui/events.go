package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/scrollstitch/internal/event"
)

// eventMsg wraps a bus event for delivery to the model.
type eventMsg struct {
	event event.Event
}

// eventsClosedMsg is sent once the event channel is closed.
type eventsClosedMsg struct{}

// Subscribe forwards every event published on bus into a buffered channel
// the dashboard can read. Events are dropped when the buffer is full so
// publishers never block on the UI. The returned function unsubscribes and
// closes the channel.
func Subscribe(bus *event.Bus, buffer int) (<-chan event.Event, func()) {
	ch := make(chan event.Event, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	id := bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			bus.Unsubscribe(id)
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// waitForEvent returns a command that blocks until the next event arrives.
func waitForEvent(ch <-chan event.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: e}
	}
}
