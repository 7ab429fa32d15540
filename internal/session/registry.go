package session

import (
	"context"
	"sync"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/output"
)

// Eviction reasons passed to Registry.Evict.
const (
	ReasonUser       = "user"
	ReasonNavigation = "navigation"
	ReasonTabClosed  = "tab closed"
	ReasonShutdown   = "shutdown"
)

// StartResult reports the outcome of Registry.Start.
type StartResult struct {
	SessionID     string
	Frames        int
	AlreadyActive bool
}

// Status is a snapshot of a tab's session.
type Status struct {
	Active    bool
	SessionID string
	State     State
	Frames    int
	Pending   int
}

// Registry owns the sessions of all tabs, at most one per tab. Tab
// lifecycle events reach it through Evict.
type Registry struct {
	opts Options
	deps Deps

	mu       sync.Mutex
	sessions map[int]*Session
}

// NewRegistry creates an empty registry whose sessions share opts and deps.
func NewRegistry(opts Options, deps Deps) *Registry {
	return &Registry{
		opts:     opts,
		deps:     deps,
		sessions: make(map[int]*Session),
	}
}

// Start begins a session for tab. If the tab already has a live session
// nothing changes and its frame count is reported.
func (r *Registry) Start(ctx context.Context, tab browser.Tab) (StartResult, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[tab.ID()]; ok && existing.State() != StateTerminated {
		r.mu.Unlock()
		return StartResult{
			SessionID:     existing.ID(),
			Frames:        existing.FrameCount(),
			AlreadyActive: true,
		}, nil
	}
	s := New(tab, r.opts, r.deps)
	r.sessions[tab.ID()] = s
	r.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		r.remove(tab.ID(), s)
		s.Cancel("start failed")
		return StartResult{}, err
	}
	return StartResult{SessionID: s.ID(), Frames: s.FrameCount()}, nil
}

// Observe forwards a scroll observation to the tab's session. Reports
// whether a capture was queued.
func (r *Registry) Observe(tabID int, obs browser.Observation) bool {
	s := r.get(tabID)
	if s == nil {
		return false
	}
	return s.Observe(obs)
}

// Track forwards a scroll observation to the tab's session and waits
// until its capture has been served. See Session.Track.
func (r *Registry) Track(ctx context.Context, tabID int, obs browser.Observation) error {
	s := r.get(tabID)
	if s == nil {
		return errors.NewSessionError("track", errors.ErrSessionNotActive).WithTabID(tabID)
	}
	return s.Track(ctx, obs)
}

// Finish finishes and removes the tab's session.
func (r *Registry) Finish(ctx context.Context, tabID int) (*output.Image, error) {
	s := r.take(tabID)
	if s == nil {
		return nil, errors.NewSessionError("finish", errors.ErrSessionNotActive).WithTabID(tabID)
	}
	return s.Finish(ctx)
}

// Cancel discards the tab's session at the user's request.
func (r *Registry) Cancel(tabID int) bool {
	return r.Evict(tabID, ReasonUser)
}

// Evict cancels and removes the tab's session, e.g. because the tab
// navigated away or closed. Reports whether a session was removed.
func (r *Registry) Evict(tabID int, reason string) bool {
	s := r.take(tabID)
	if s == nil {
		return false
	}
	s.Cancel(reason)
	return true
}

// Status reports on the tab's session.
func (r *Registry) Status(tabID int) Status {
	s := r.get(tabID)
	if s == nil {
		return Status{State: StateIdle}
	}
	state := s.State()
	return Status{
		Active:    state == StateActive || state == StateFinishing,
		SessionID: s.ID(),
		State:     state,
		Frames:    s.FrameCount(),
		Pending:   s.Pending(),
	}
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close cancels every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[int]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Cancel(ReasonShutdown)
	}
}

func (r *Registry) get(tabID int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[tabID]
}

func (r *Registry) take(tabID int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[tabID]
	delete(r.sessions, tabID)
	return s
}

// remove deletes tabID only if it still maps to s.
func (r *Registry) remove(tabID int, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[tabID] == s {
		delete(r.sessions, tabID)
	}
}
