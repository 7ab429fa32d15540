// Package event provides a synchronous pub-sub bus used to report what a
// capture session is doing without coupling the session to its observers.
//
// Sessions publish lifecycle events ([SessionStartedEvent],
// [SessionFinishedEvent], [SessionCancelledEvent]) and per-request events
// ([FrameCapturedEvent], [FrameSkippedEvent], [CaptureFailedEvent]). The
// terminal UI and the command-line progress printer subscribe to them.
//
// Handlers run synchronously on the publishing goroutine, which for frame
// events is the session's capture worker. Handlers must therefore return
// quickly; forward to a channel if real work is needed:
//
//	bus := event.NewBus()
//	bus.Subscribe(event.TypeFrameCaptured, func(e event.Event) {
//	    fc := e.(event.FrameCapturedEvent)
//	    updates <- fc.Frames
//	})
//
// A panicking handler is recovered and logged; delivery continues with the
// remaining handlers.
//
// A nil *Bus is valid and drops every event.
package event
