// Package area crops a user-selected rectangle out of a viewport capture.
package area

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/output"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
)

// MinSize is the smallest selectable width and height in CSS pixels.
const MinSize = 2

// Rect is a selection in viewport CSS pixels. Width and Height may be
// negative when the selection was dragged up or to the left.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// ParseRect parses "x,y,width,height".
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, errors.NewValidationError("area must be x,y,width,height").WithValue(s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Rect{}, errors.NewValidationError("area must be x,y,width,height").WithValue(s)
		}
		v[i] = f
	}
	return Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

// String formats r the way ParseRect reads it.
func (r Rect) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.X, r.Y, r.Width, r.Height)
}

// Normalize clips r to a vw x vh viewport and flips negative extents, so
// the result has its origin at the top-left and non-negative size.
func Normalize(r Rect, vw, vh int) Rect {
	x1 := clampF(r.X, 0, float64(vw))
	y1 := clampF(r.Y, 0, float64(vh))
	x2 := clampF(r.X+r.Width, 0, float64(vw))
	y2 := clampF(r.Y+r.Height, 0, float64(vh))
	return Rect{
		X:      math.Min(x1, x2),
		Y:      math.Min(y1, y2),
		Width:  math.Abs(x2 - x1),
		Height: math.Abs(y2 - y1),
	}
}

// Options configures cropping.
type Options struct {
	MaxEdge int
	Format  frame.Format
	Quality int
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{MaxEdge: stitch.DefaultMaxEdge, Format: frame.FormatPNG}
}

// Crop cuts the selection r out of an encoded viewport capture. vw and vh
// are the viewport size in CSS pixels; the capture may be larger when the
// device pixel ratio is above one.
func Crop(data []byte, r Rect, vw, vh int, opts Options) (*output.Image, error) {
	if vw <= 0 || vh <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidPageGeometry, "area capture")
	}
	sel := Normalize(r, vw, vh)
	if sel.Width < MinSize || sel.Height < MinSize {
		return nil, errors.NewValidationError("selection too small").
			WithValue(sel.String()).
			WithCause(errors.ErrAreaTooSmall)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	b := src.Bounds()
	scaleX := float64(b.Dx()) / float64(vw)
	scaleY := float64(b.Dy()) / float64(vh)

	sx := clamp(int(math.Floor(sel.X*scaleX)), 0, b.Dx()-1)
	sy := clamp(int(math.Floor(sel.Y*scaleY)), 0, b.Dy()-1)
	sw := clamp(int(math.Ceil(sel.Width*scaleX)), 1, b.Dx()-sx)
	sh := clamp(int(math.Ceil(sel.Height*scaleY)), 1, b.Dy()-sy)

	if opts.MaxEdge > 0 && (sw > opts.MaxEdge || sh > opts.MaxEdge) {
		return nil, errors.NewStitchError("selected area exceeds max edge", errors.ErrOutputTooLarge).
			WithFrameCount(1).
			WithDimensions(sw, sh)
	}

	dst := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(b.Min.X+sx, b.Min.Y+sy), draw.Src)

	out, err := stitch.EncodeBytes(dst, opts.Format, opts.Quality)
	if err != nil {
		return nil, err
	}
	return &output.Image{Data: out, Format: opts.Format, Width: sw, Height: sh, Frames: 1}, nil
}

// Capture takes one capture of tab's viewport and crops r out of it.
func Capture(ctx context.Context, capture browser.RawCapture, tab browser.Tab, r Rect, opts Options) (*output.Image, error) {
	geo, err := tab.Geometry(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read page geometry")
	}
	if !geo.Valid() {
		return nil, errors.Wrap(errors.ErrInvalidPageGeometry, "area capture")
	}
	data, err := capture.CaptureVisible(ctx, tab.WindowID(), browser.CaptureOptions{Format: frame.FormatPNG})
	if err != nil {
		return nil, err
	}
	return Crop(data, r, geo.ViewportWidth, geo.ViewportHeight, opts)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampF(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
