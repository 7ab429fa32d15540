// Package replay simulates a browser tab from one tall page image. It is
// used to exercise capture sessions without a browser, by the simulate
// command and by tests.
package replay

import (
	"context"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
)

// Tab renders viewport-sized crops of a page image. Page pixels are device
// pixels; scroll positions and viewport sizes are CSS pixels, related by the
// device pixel ratio. Tab implements browser.ScrollableTab and
// browser.RawCapture.
type Tab struct {
	id       int
	windowID int
	page     image.Image
	dpr      int
	vw, vh   int
	report   func(actualY int) int
	denied   bool

	mu       sync.Mutex
	scrollY  int
	captures int
}

// Option customizes a Tab.
type Option func(*Tab)

// WithWindowID sets the window the tab belongs to.
func WithWindowID(id int) Option {
	return func(t *Tab) { t.windowID = id }
}

// WithDevicePixelRatio sets how many page pixels make one CSS pixel.
func WithDevicePixelRatio(n int) Option {
	return func(t *Tab) {
		if n > 0 {
			t.dpr = n
		}
	}
}

// WithReportedScroll makes the tab report f(actual) as its scroll position,
// modelling browsers whose reported offsets drift from what is painted.
func WithReportedScroll(f func(actualY int) int) Option {
	return func(t *Tab) { t.report = f }
}

// WithJitter reports positions off by up to amplitude CSS pixels in a
// deterministic pattern. The top of the page is always reported exactly.
func WithJitter(amplitude int) Option {
	return WithReportedScroll(func(y int) int {
		if amplitude <= 0 || y == 0 {
			return y
		}
		return max(0, y+(y*7919)%(2*amplitude+1)-amplitude)
	})
}

// WithAccessDenied makes every capture fail as a protected page would.
func WithAccessDenied() Option {
	return func(t *Tab) { t.denied = true }
}

// NewTab creates a tab showing page through a viewport viewportHeight CSS
// pixels tall and as wide as the page.
func NewTab(id int, page image.Image, viewportHeight int, opts ...Option) *Tab {
	t := &Tab{id: id, windowID: 1, page: page, dpr: 1}
	for _, opt := range opts {
		opt(t)
	}
	b := page.Bounds()
	t.vw = b.Dx() / t.dpr
	t.vh = min(viewportHeight, b.Dy()/t.dpr)
	return t
}

// ID implements browser.Tab.
func (t *Tab) ID() int { return t.id }

// WindowID implements browser.Tab.
func (t *Tab) WindowID() int { return t.windowID }

// Geometry implements browser.PageProbe.
func (t *Tab) Geometry(ctx context.Context) (browser.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return browser.Geometry{}, err
	}
	t.mu.Lock()
	y := t.scrollY
	t.mu.Unlock()
	if t.report != nil {
		y = t.report(y)
	}
	return browser.Geometry{
		ScrollY:        y,
		ViewportWidth:  t.vw,
		ViewportHeight: t.vh,
		ScrollHeight:   t.page.Bounds().Dy() / t.dpr,
	}, nil
}

// ScrollTo implements browser.Scroller. Positions are clamped to the page.
func (t *Tab) ScrollTo(ctx context.Context, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	maxY := t.page.Bounds().Dy()/t.dpr - t.vh
	t.mu.Lock()
	t.scrollY = min(max(y, 0), max(maxY, 0))
	t.mu.Unlock()
	return nil
}

// ScrollY returns the actual scroll position.
func (t *Tab) ScrollY() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollY
}

// Observation returns the scroll-feed entry for the current position.
func (t *Tab) Observation() browser.Observation {
	geo, _ := t.Geometry(context.Background())
	return browser.Observation{
		ScrollY:        geo.ScrollY,
		ViewportWidth:  geo.ViewportWidth,
		ViewportHeight: geo.ViewportHeight,
	}
}

// Captures returns how many captures were taken.
func (t *Tab) Captures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captures
}

// CaptureVisible implements browser.RawCapture by encoding the viewport at
// the current scroll position.
func (t *Tab) CaptureVisible(ctx context.Context, _ int, opts browser.CaptureOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.denied {
		return nil, errors.ErrCaptureAccessDenied
	}

	t.mu.Lock()
	y := t.scrollY
	t.captures++
	t.mu.Unlock()

	b := t.page.Bounds()
	view := image.NewRGBA(image.Rect(0, 0, t.vw*t.dpr, t.vh*t.dpr))
	draw.Draw(view, view.Bounds(), t.page, image.Pt(b.Min.X, b.Min.Y+y*t.dpr), draw.Src)
	return stitch.EncodeBytes(view, opts.Format, opts.Quality)
}
