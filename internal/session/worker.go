package session

import (
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/event"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
)

// worker is the only goroutine that captures for this session. It exits
// when the queue is closed by Finish or the session context is cancelled.
func (s *Session) worker() {
	defer s.workerWG.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case req, ok := <-s.requests:
			if !ok {
				return
			}
			s.handle()
			if req.done != nil {
				close(req.done)
			}
		}
	}
}

// handle serves one capture request.
func (s *Session) handle() {
	if s.ctx.Err() != nil {
		return
	}

	y := s.captureY()
	if s.store.HasNearby(y) {
		s.log.Debug("frame skipped", "scroll_y", y)
		s.deps.Bus.Publish(event.NewFrameSkippedEvent(s.id, s.tab.ID(), y))
		return
	}

	data, err := s.deps.Capture.CaptureVisible(s.ctx, s.tab.WindowID(), s.opts.Capture)
	if s.ctx.Err() != nil {
		// Cancelled while capturing; the result belongs to no one.
		return
	}
	if err != nil {
		logFailure(s.log, "capture failed", err, "scroll_y", y)
		s.deps.Bus.Publish(event.NewCaptureFailedEvent(s.id, s.tab.ID(), y, err))
		return
	}

	if !s.store.Add(frame.Frame{ScrollY: y, Data: data, CapturedAt: time.Now()}) {
		return
	}
	frames := s.store.Len()
	pending := len(s.requests)
	s.log.Debug("frame captured", "scroll_y", y, "frames", frames, "pending", pending)
	s.deps.Bus.Publish(event.NewFrameCapturedEvent(s.id, s.tab.ID(), y, frames, pending))
}

// captureY returns the position of the frame about to be captured: the
// last observed scroll position, which is the virtual position including
// nested scroll containers. The page is probed to refresh the viewport
// size, and supplies the position only until the first observation.
func (s *Session) captureY() int {
	geo, err := s.tab.Geometry(s.ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Debug("page probe failed, using last known position", "error", err.Error())
		return s.lastKnownY
	}
	if !s.observed {
		s.lastKnownY = max(geo.ScrollY, 0)
	}
	if geo.ViewportWidth > 0 {
		s.viewportWidth = geo.ViewportWidth
	}
	if geo.ViewportHeight > 0 {
		s.viewportHeight = geo.ViewportHeight
	}
	return s.lastKnownY
}

// logFailure logs err at the level its severity calls for.
func logFailure(log *logging.Logger, msg string, err error, args ...any) {
	args = append(args, "error", err.Error(), "severity", errors.GetSeverity(err).String())
	switch errors.GetSeverity(err) {
	case errors.SeverityCritical, errors.SeverityError:
		log.Error(msg, args...)
	case errors.SeverityWarning:
		log.Warn(msg, args...)
	default:
		log.Info(msg, args...)
	}
}
