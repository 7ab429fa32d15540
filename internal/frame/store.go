// Package frame holds captured viewport frames and the per-session store
// that keeps them ordered and free of near-duplicates.
package frame

import (
	"slices"
	"sync"
	"time"
)

// DefaultDedupeRadius is the scroll distance, in CSS pixels, within which two
// frames are considered the same capture.
const DefaultDedupeRadius = 24

// Frame is one raw capture of the visible viewport. Data holds the encoded
// image exactly as the capture primitive returned it. Frames are never
// mutated once stored.
type Frame struct {
	ScrollY    int
	Data       []byte
	CapturedAt time.Time
}

// Store keeps a session's frames sorted by ScrollY. No two stored frames are
// within the dedupe radius of each other. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	radius int
	frames []Frame
}

// NewStore creates an empty store. A negative radius is treated as zero.
func NewStore(radius int) *Store {
	return &Store{radius: max(radius, 0)}
}

// Radius returns the dedupe radius.
func (s *Store) Radius() int {
	return s.radius
}

// Add inserts f unless a stored frame lies within the dedupe radius of
// f.ScrollY. Reports whether the frame was stored.
func (s *Store) Add(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nearbyLocked(f.ScrollY) {
		return false
	}
	i, _ := slices.BinarySearchFunc(s.frames, f.ScrollY, func(e Frame, y int) int {
		return e.ScrollY - y
	})
	s.frames = slices.Insert(s.frames, i, f)
	return true
}

// HasNearby reports whether a stored frame is within the dedupe radius of y.
func (s *Store) HasNearby(y int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nearbyLocked(y)
}

func (s *Store) nearbyLocked(y int) bool {
	for _, f := range s.frames {
		if abs(f.ScrollY-y) <= s.radius {
			return true
		}
	}
	return false
}

// Len returns the number of stored frames.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Frames returns a copy of the stored frames in ScrollY order.
func (s *Store) Frames() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.frames)
}

// Clear drops every stored frame.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}

// Dedupe sorts frames by ScrollY and greedily keeps a frame only if it is
// farther than radius from the last kept one. The input is not modified.
// Dedupe is idempotent.
func Dedupe(frames []Frame, radius int) []Frame {
	if len(frames) == 0 {
		return nil
	}
	sorted := slices.Clone(frames)
	slices.SortStableFunc(sorted, func(a, b Frame) int {
		return a.ScrollY - b.ScrollY
	})

	kept := sorted[:1]
	for _, f := range sorted[1:] {
		if abs(f.ScrollY-kept[len(kept)-1].ScrollY) > radius {
			kept = append(kept, f)
		}
	}
	return kept
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
