// Package browser declares the narrow capabilities the capture engine needs
// from the page it is recording. Implementations live elsewhere: a simulated
// page in package replay, a directory of screenshots in package watch.
package browser

import (
	"context"

	"github.com/Iron-Ham/scrollstitch/internal/frame"
)

// CaptureOptions selects the encoding of a raw capture.
type CaptureOptions struct {
	Format  frame.Format
	Quality int // 0-100, only used for lossy formats
}

// RawCapture grabs the visible viewport of a window as an encoded image.
//
// Implementations report rate limiting by returning an error that matches
// errors.ErrCaptureQuotaExceeded, and pages that may never be captured with
// errors.ErrCaptureAccessDenied.
type RawCapture interface {
	CaptureVisible(ctx context.Context, windowID int, opts CaptureOptions) ([]byte, error)
}

// Geometry describes the current layout of a page in CSS pixels.
type Geometry struct {
	ScrollY        int
	ViewportWidth  int
	ViewportHeight int
	ScrollHeight   int
}

// MaxScroll is the largest reachable ScrollY.
func (g Geometry) MaxScroll() int {
	return max(0, g.ScrollHeight-g.ViewportHeight)
}

// Valid reports whether the viewport has a non-zero size.
func (g Geometry) Valid() bool {
	return g.ViewportWidth > 0 && g.ViewportHeight > 0
}

// PageProbe reads the live layout of a page.
type PageProbe interface {
	Geometry(ctx context.Context) (Geometry, error)
}

// Scroller moves a page to an absolute vertical position.
type Scroller interface {
	ScrollTo(ctx context.Context, y int) error
}

// Observation is one entry of the scroll feed: the virtual scroll position
// and the viewport size at the time of a meaningful scroll movement.
// Zero viewport fields mean "unchanged".
type Observation struct {
	ScrollY        int
	ViewportWidth  int
	ViewportHeight int
}

// Tab is a capturable page.
type Tab interface {
	PageProbe
	ID() int
	WindowID() int
}

// ScrollableTab is a Tab that can also be scrolled programmatically.
type ScrollableTab interface {
	Tab
	Scroller
}
