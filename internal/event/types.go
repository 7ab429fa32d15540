// Package event defines the events published while a capture session runs.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.started", "frame.captured")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionStarted   = "session.started"
	TypeFrameCaptured    = "frame.captured"
	TypeFrameSkipped     = "frame.skipped"
	TypeCaptureFailed    = "capture.failed"
	TypeSessionFinished  = "session.finished"
	TypeSessionCancelled = "session.cancelled"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionStartedEvent is emitted once a session has entered the active state.
type SessionStartedEvent struct {
	baseEvent
	SessionID      string
	TabID          int
	ViewportWidth  int
	ViewportHeight int
	ScrollY        int
}

// NewSessionStartedEvent creates a SessionStartedEvent.
func NewSessionStartedEvent(sessionID string, tabID, viewportWidth, viewportHeight, scrollY int) SessionStartedEvent {
	return SessionStartedEvent{
		baseEvent:      newBaseEvent(TypeSessionStarted),
		SessionID:      sessionID,
		TabID:          tabID,
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
		ScrollY:        scrollY,
	}
}

// SessionFinishedEvent is emitted when a session produced its stitched output.
type SessionFinishedEvent struct {
	baseEvent
	SessionID string
	TabID     int
	Frames    int
	Width     int
	Height    int
	Bytes     int
}

// NewSessionFinishedEvent creates a SessionFinishedEvent.
func NewSessionFinishedEvent(sessionID string, tabID, frames, width, height, size int) SessionFinishedEvent {
	return SessionFinishedEvent{
		baseEvent: newBaseEvent(TypeSessionFinished),
		SessionID: sessionID,
		TabID:     tabID,
		Frames:    frames,
		Width:     width,
		Height:    height,
		Bytes:     size,
	}
}

// SessionCancelledEvent is emitted when a session is torn down without
// stitching. Reason is free-form ("user", "navigation", "tab closed", ...).
type SessionCancelledEvent struct {
	baseEvent
	SessionID string
	TabID     int
	Reason    string
}

// NewSessionCancelledEvent creates a SessionCancelledEvent.
func NewSessionCancelledEvent(sessionID string, tabID int, reason string) SessionCancelledEvent {
	return SessionCancelledEvent{
		baseEvent: newBaseEvent(TypeSessionCancelled),
		SessionID: sessionID,
		TabID:     tabID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Frame Events
// -----------------------------------------------------------------------------

// FrameCapturedEvent is emitted after a frame was captured and stored.
type FrameCapturedEvent struct {
	baseEvent
	SessionID string
	TabID     int
	ScrollY   int
	Frames    int // Frames held by the session after this one was stored
	Pending   int // Capture requests still queued
}

// NewFrameCapturedEvent creates a FrameCapturedEvent.
func NewFrameCapturedEvent(sessionID string, tabID, scrollY, frames, pending int) FrameCapturedEvent {
	return FrameCapturedEvent{
		baseEvent: newBaseEvent(TypeFrameCaptured),
		SessionID: sessionID,
		TabID:     tabID,
		ScrollY:   scrollY,
		Frames:    frames,
		Pending:   pending,
	}
}

// FrameSkippedEvent is emitted when a capture request was dropped because a
// frame already exists close to the live scroll position.
type FrameSkippedEvent struct {
	baseEvent
	SessionID string
	TabID     int
	ScrollY   int
}

// NewFrameSkippedEvent creates a FrameSkippedEvent.
func NewFrameSkippedEvent(sessionID string, tabID, scrollY int) FrameSkippedEvent {
	return FrameSkippedEvent{
		baseEvent: newBaseEvent(TypeFrameSkipped),
		SessionID: sessionID,
		TabID:     tabID,
		ScrollY:   scrollY,
	}
}

// CaptureFailedEvent is emitted when a raw capture failed for one request.
// The session keeps running; only that frame is lost.
type CaptureFailedEvent struct {
	baseEvent
	SessionID string
	TabID     int
	ScrollY   int
	Err       error
}

// NewCaptureFailedEvent creates a CaptureFailedEvent.
func NewCaptureFailedEvent(sessionID string, tabID, scrollY int, err error) CaptureFailedEvent {
	return CaptureFailedEvent{
		baseEvent: newBaseEvent(TypeCaptureFailed),
		SessionID: sessionID,
		TabID:     tabID,
		ScrollY:   scrollY,
		Err:       err,
	}
}
