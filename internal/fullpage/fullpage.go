// Package fullpage captures a whole page by scrolling it one viewport at a
// time and stitching the frames.
package fullpage

import (
	"context"
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
	"github.com/Iron-Ham/scrollstitch/internal/output"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
)

// DefaultSettleDelay is how long the page is given to repaint after each
// scroll before it is captured.
const DefaultSettleDelay = 160 * time.Millisecond

// Options configures a Capturer.
type Options struct {
	SettleDelay  time.Duration
	DedupeRadius int
	Capture      browser.CaptureOptions

	// Sleep replaces the settle wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		SettleDelay:  DefaultSettleDelay,
		DedupeRadius: frame.DefaultDedupeRadius,
		Capture:      browser.CaptureOptions{Format: frame.FormatPNG},
	}
}

// Capturer drives full-page captures. It holds no per-capture state and may
// be shared.
type Capturer struct {
	capture  browser.RawCapture
	stitcher *stitch.Stitcher
	opts     Options
	logger   *logging.Logger
}

// New creates a Capturer. capture is normally the shared throttle.
func New(capture browser.RawCapture, stitcher *stitch.Stitcher, opts Options, logger *logging.Logger) *Capturer {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Capturer{
		capture:  capture,
		stitcher: stitcher,
		opts:     opts,
		logger:   logger.With("component", "fullpage"),
	}
}

// Positions returns the scroll positions that cover the page: every
// viewport height from the top, plus the bottom-most position if the last
// step falls short of it.
func Positions(geo browser.Geometry) []int {
	if geo.ViewportHeight <= 0 {
		return nil
	}
	maxY := geo.MaxScroll()
	var out []int
	for y := 0; y <= maxY; y += geo.ViewportHeight {
		out = append(out, y)
	}
	if out[len(out)-1] != maxY {
		out = append(out, maxY)
	}
	return out
}

// Capture scrolls tab through Positions, captures each position and
// stitches the result. The tab's original scroll position is restored on
// every exit path, including cancellation. Any failed capture fails the
// whole run.
func (c *Capturer) Capture(ctx context.Context, tab browser.ScrollableTab) (*output.Image, error) {
	geo, err := tab.Geometry(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read page geometry")
	}
	if !geo.Valid() {
		return nil, errors.Wrap(errors.ErrInvalidPageGeometry, "full-page capture")
	}

	log := c.logger.WithTab(tab.ID())
	defer func() {
		// The caller's context may already be done; the page still has to
		// be put back.
		if err := tab.ScrollTo(context.WithoutCancel(ctx), geo.ScrollY); err != nil {
			log.Warn("failed to restore scroll position", "scroll_y", geo.ScrollY, "error", err.Error())
		}
	}()

	positions := Positions(geo)
	log.Info("full-page capture started",
		"positions", len(positions),
		"scroll_height", geo.ScrollHeight,
		"viewport_height", geo.ViewportHeight)

	vw, vh := geo.ViewportWidth, geo.ViewportHeight
	frames := make([]frame.Frame, 0, len(positions))
	for _, y := range positions {
		if err := tab.ScrollTo(ctx, y); err != nil {
			return nil, errors.Wrapf(err, "scroll to %d", y)
		}
		if err := c.opts.Sleep(ctx, c.opts.SettleDelay); err != nil {
			return nil, err
		}
		data, err := c.capture.CaptureVisible(ctx, tab.WindowID(), c.opts.Capture)
		if err != nil {
			return nil, err
		}

		// The page may not have scrolled exactly where it was asked to.
		liveY := y
		if live, err := tab.Geometry(ctx); err == nil {
			liveY = max(live.ScrollY, 0)
			if live.ViewportWidth > 0 {
				vw = live.ViewportWidth
			}
			if live.ViewportHeight > 0 {
				vh = live.ViewportHeight
			}
		}
		log.Debug("frame captured", "target_y", y, "scroll_y", liveY)
		frames = append(frames, frame.Frame{ScrollY: liveY, Data: data, CapturedAt: time.Now()})
	}

	frames = frame.Dedupe(frames, c.opts.DedupeRadius)
	res, err := c.stitcher.Stitch(ctx, frames, vw, vh)
	if err != nil {
		return nil, err
	}
	data, err := res.Encode(c.opts.Capture.Format, c.opts.Capture.Quality)
	if err != nil {
		return nil, err
	}

	b := res.Image.Bounds()
	log.Info("full-page capture finished", "frames", res.Frames, "width", b.Dx(), "height", b.Dy())
	return &output.Image{
		Data:   data,
		Format: c.opts.Capture.Format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Frames: res.Frames,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
