// Package session implements the scroll-capture session: a state machine
// that turns scroll observations into paced, de-duplicated frame captures
// and stitches them into one image when finished.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/event"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
	"github.com/Iron-Ham/scrollstitch/internal/output"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
)

// DefaultMaxPending caps queued capture requests per session.
const DefaultMaxPending = 20

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateIdle State = iota
	StateActive
	StateFinishing
	StateTerminated
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFinishing:
		return "finishing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options configures a Session.
type Options struct {
	DedupeRadius int
	MaxPending   int
	Capture      browser.CaptureOptions
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		DedupeRadius: frame.DefaultDedupeRadius,
		MaxPending:   DefaultMaxPending,
		Capture:      browser.CaptureOptions{Format: frame.FormatPNG},
	}
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	// Capture is normally a *throttle.Throttle shared by every session.
	Capture  browser.RawCapture
	Stitcher *stitch.Stitcher
	Bus      *event.Bus // optional
	Logger   *logging.Logger
}

// captureRequest asks the worker to capture at the live scroll position.
// done, when set, is closed once the request has been handled.
type captureRequest struct {
	done chan struct{}
}

// Session records one tab. All methods are safe for concurrent use.
//
// Scroll observations feed a bounded request queue drained by a single
// worker goroutine, so observations arriving faster than captures complete
// coalesce instead of piling up.
type Session struct {
	id    string
	tab   browser.Tab
	opts  Options
	deps  Deps
	store *frame.Store
	log   *logging.Logger

	mu             sync.Mutex
	state          State
	viewportWidth  int
	viewportHeight int
	lastKnownY     int
	observed       bool
	startedAt      time.Time

	requests chan captureRequest
	senders  sync.WaitGroup // Track calls that may still send on requests
	ctx      context.Context
	cancel   context.CancelFunc
	workerWG sync.WaitGroup
}

// New creates an idle session for tab.
func New(tab browser.Tab, opts Options, deps Deps) *Session {
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	id := uuid.NewString()
	return &Session{
		id:    id,
		tab:   tab,
		opts:  opts,
		deps:  deps,
		store: frame.NewStore(opts.DedupeRadius),
		log:   deps.Logger.WithSession(id).WithTab(tab.ID()),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// TabID returns the ID of the recorded tab.
func (s *Session) TabID() int { return s.tab.ID() }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FrameCount returns the number of stored frames.
func (s *Session) FrameCount() int {
	return s.store.Len()
}

// Pending returns the number of queued capture requests.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requests == nil {
		return 0
	}
	return len(s.requests)
}

// Viewport returns the most recently observed viewport size in CSS pixels.
func (s *Session) Viewport() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewportWidth, s.viewportHeight
}

// Start validates the page geometry, enters the active state and captures
// the first frame. It fails with ErrInvalidPageGeometry when the viewport
// has no area. Start may only be called once.
func (s *Session) Start(ctx context.Context) error {
	geo, err := s.tab.Geometry(ctx)
	if err != nil {
		return s.sessionError("read page geometry", err)
	}
	if !geo.Valid() {
		return s.sessionError("viewport has no area", errors.ErrInvalidPageGeometry)
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return s.sessionError("start", errors.ErrSessionClosed)
	}
	s.state = StateActive
	s.viewportWidth = geo.ViewportWidth
	s.viewportHeight = geo.ViewportHeight
	s.lastKnownY = geo.ScrollY
	s.startedAt = time.Now()
	// The worker outlives the caller's request; only Cancel stops it.
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.requests = make(chan captureRequest, s.opts.MaxPending)
	initial := captureRequest{done: make(chan struct{})}
	s.requests <- initial
	s.mu.Unlock()

	s.log.Info("session started",
		"viewport_width", geo.ViewportWidth,
		"viewport_height", geo.ViewportHeight,
		"scroll_y", geo.ScrollY)
	s.deps.Bus.Publish(event.NewSessionStartedEvent(s.id, s.tab.ID(), geo.ViewportWidth, geo.ViewportHeight, geo.ScrollY))

	s.workerWG.Add(1)
	go s.worker()

	select {
	case <-initial.done:
		return nil
	case <-ctx.Done():
		s.Cancel("start aborted")
		return ctx.Err()
	case <-s.ctx.Done():
		return s.sessionError("start", errors.ErrSessionClosed)
	}
}

// Observe records a scroll observation and queues a capture. When the
// queue is full the observation only updates the last known position.
// Observations outside the active state are ignored. Reports whether a
// capture was queued.
func (s *Session) Observe(obs browser.Observation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}
	s.recordLocked(obs)

	select {
	case s.requests <- captureRequest{}:
		return true
	default:
		s.log.Debug("capture queue full, coalescing", "scroll_y", obs.ScrollY)
		return false
	}
}

// Track records a scroll observation like Observe, then waits until a
// capture for it has been served. It never coalesces: when the queue is
// full it waits for room. A capture that fails or is skipped as a
// duplicate still counts as served.
func (s *Session) Track(ctx context.Context, obs browser.Observation) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return s.sessionError("track", errors.ErrSessionNotActive)
	}
	s.recordLocked(obs)
	s.senders.Add(1)
	s.mu.Unlock()

	req := captureRequest{done: make(chan struct{})}
	var sendErr error
	select {
	case s.requests <- req:
	case <-s.ctx.Done():
		sendErr = s.sessionError("track", errors.ErrSessionClosed)
	case <-ctx.Done():
		sendErr = ctx.Err()
	}
	s.senders.Done()
	if sendErr != nil {
		return sendErr
	}

	select {
	case <-req.done:
		return nil
	case <-s.ctx.Done():
		return s.sessionError("track", errors.ErrSessionClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recordLocked applies obs to the session. s.mu must be held.
func (s *Session) recordLocked(obs browser.Observation) {
	s.lastKnownY = max(obs.ScrollY, 0)
	s.observed = true
	if obs.ViewportWidth > 0 {
		s.viewportWidth = obs.ViewportWidth
	}
	if obs.ViewportHeight > 0 {
		s.viewportHeight = obs.ViewportHeight
	}
}

// Finish queues a last capture, waits for the queue to drain, and stitches
// the stored frames. The session ends in the terminated state whatever the
// outcome. It fails with ErrNoFramesCaptured when nothing was stored.
func (s *Session) Finish(ctx context.Context) (*output.Image, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, s.sessionError("finish", errors.ErrSessionNotActive)
	}
	s.state = StateFinishing
	s.mu.Unlock()
	s.log.WithState(StateFinishing.String()).Info("finishing session", "frames", s.store.Len())

	// Observe and Track no longer start sending once the state left Active.
	// The queue is closed after the Track calls already sending are done.
	select {
	case s.requests <- captureRequest{}:
	case <-s.ctx.Done():
	case <-ctx.Done():
		s.Cancel("finish aborted")
		return nil, ctx.Err()
	}

	drained := make(chan struct{})
	go func() {
		s.senders.Wait()
		close(s.requests)
		s.workerWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.Cancel("finish aborted")
		return nil, ctx.Err()
	}

	if s.ctx.Err() != nil {
		return nil, s.sessionError("finish", errors.ErrCanceled)
	}

	img, err := s.stitch(ctx)
	s.terminate()
	if err != nil {
		logFailure(s.log, "session failed", err)
		return nil, err
	}

	s.log.Info("session finished",
		"frames", img.Frames,
		"width", img.Width,
		"height", img.Height,
		"bytes", len(img.Data),
		"duration_ms", time.Since(s.startedAt).Milliseconds())
	s.deps.Bus.Publish(event.NewSessionFinishedEvent(s.id, s.tab.ID(), img.Frames, img.Width, img.Height, len(img.Data)))
	return img, nil
}

func (s *Session) stitch(ctx context.Context) (*output.Image, error) {
	frames := frame.Dedupe(s.store.Frames(), s.store.Radius())
	if len(frames) == 0 {
		// The user can scroll and finish again.
		return nil, s.sessionError("finish", errors.ErrNoFramesCaptured).WithSeverity(errors.SeverityWarning)
	}

	vw, vh := s.Viewport()
	res, err := s.deps.Stitcher.Stitch(ctx, frames, vw, vh)
	if err != nil {
		return nil, err
	}
	data, err := res.Encode(s.opts.Capture.Format, s.opts.Capture.Quality)
	if err != nil {
		return nil, err
	}
	b := res.Image.Bounds()
	return &output.Image{
		Data:   data,
		Format: s.opts.Capture.Format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Frames: res.Frames,
	}, nil
}

// terminate releases the frames and stops the worker.
func (s *Session) terminate() {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.store.Clear()
}

// Cancel discards every frame and terminates the session without
// stitching. In-flight captures complete and their results are dropped.
// Cancel is a no-op on a terminated session. Reports whether the session
// was torn down by this call.
func (s *Session) Cancel(reason string) bool {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return false
	}
	s.state = StateTerminated
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.store.Clear()

	s.log.Info("session cancelled", "reason", reason)
	s.deps.Bus.Publish(event.NewSessionCancelledEvent(s.id, s.tab.ID(), reason))
	return true
}

func (s *Session) sessionError(msg string, cause error) *errors.SessionError {
	return errors.NewSessionError(msg, cause).WithTabID(s.tab.ID()).WithSessionID(s.id)
}
