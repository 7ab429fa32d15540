// Package stitch composites an ordered list of overlapping viewport frames
// into one tall image.
package stitch

import (
	"context"
	"image"
	"image/draw"
	"math"
	"slices"

	xdraw "golang.org/x/image/draw"

	"github.com/Iron-Ham/scrollstitch/internal/align"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
	"github.com/Iron-Ham/scrollstitch/internal/luma"
)

// Defaults for Options.
const (
	// DefaultMaxEdge is the largest width or height of an output image.
	DefaultMaxEdge = 32767
	// DefaultMinStep is the smallest scroll delta, in CSS pixels, a frame
	// is assumed to add.
	DefaultMinStep = 1
)

// Options configures a Stitcher.
type Options struct {
	MinStep     int
	MaxEdge     int
	SampleWidth int
	Align       align.Options
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		MinStep:     DefaultMinStep,
		MaxEdge:     DefaultMaxEdge,
		SampleWidth: luma.DefaultMaxWidth,
		Align:       align.DefaultOptions(),
	}
}

// Seam records how one frame was joined to the content above it.
type Seam struct {
	ScrollY  int     // Reported scroll position of the appended frame
	Expected int     // Overlap predicted from the scroll delta, source px
	Offset   int     // Overlap actually used, source px
	Drawn    int     // Rows appended to the output
	Score    float64 // Alignment score, +Inf when no match was trusted
	Matched  bool
}

// Result is a composited image.
type Result struct {
	Image  *image.RGBA
	Frames int
	Seams  []Seam
}

// Encode encodes the composited image.
func (r *Result) Encode(format frame.Format, quality int) ([]byte, error) {
	return EncodeBytes(r.Image, format, quality)
}

// Stitcher composites frames. It is safe for concurrent use.
type Stitcher struct {
	opts    Options
	sampler *luma.Sampler
	aligner *align.Aligner
	pool    *bitmapPool
	logger  *logging.Logger
}

// New creates a Stitcher. A nil logger discards output.
func New(opts Options, logger *logging.Logger) *Stitcher {
	if opts.MinStep <= 0 {
		opts.MinStep = DefaultMinStep
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = DefaultMaxEdge
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Stitcher{
		opts:    opts,
		sampler: luma.NewSampler(opts.SampleWidth),
		aligner: align.New(opts.Align),
		pool:    newBitmapPool(2),
		logger:  logger,
	}
}

// Stitch composites frames captured from a viewport of the given CSS size.
// Non-positive viewport dimensions fall back to the first frame's pixel size.
//
// The output is as wide as the first frame. Its height is the first frame's
// viewport height plus every scroll delta clamped to [MinStep, viewport
// height], converted to source pixels, and cropped to what was actually
// drawn. Each appended frame contributes only the rows below its aligned
// overlap with the previous one.
func (s *Stitcher) Stitch(ctx context.Context, frames []frame.Frame, viewportWidth, viewportHeight int) (*Result, error) {
	if len(frames) == 0 {
		return nil, errors.NewStitchError("nothing to composite", errors.ErrNoFramesToStitch)
	}

	sorted := slices.Clone(frames)
	slices.SortStableFunc(sorted, func(a, b frame.Frame) int { return a.ScrollY - b.ScrollY })

	first, release, err := s.pool.acquire(sorted[0].Data)
	if err != nil {
		return nil, err
	}
	firstW, firstH := first.Bounds().Dx(), first.Bounds().Dy()

	if viewportWidth <= 0 {
		viewportWidth = firstW
	}
	if viewportHeight <= 0 {
		viewportHeight = firstH
	}
	scale := float64(firstW) / float64(viewportWidth)

	totalCSS := viewportHeight
	for i := 1; i < len(sorted); i++ {
		totalCSS += s.step(sorted[i-1], sorted[i], viewportHeight)
	}
	canvasW := firstW
	canvasH := int(math.Round(float64(totalCSS) * scale))

	if canvasW > s.opts.MaxEdge || canvasH > s.opts.MaxEdge {
		release()
		return nil, errors.NewStitchError("output exceeds maximum edge", errors.ErrOutputTooLarge).
			WithFrameCount(len(sorted)).
			WithDimensions(canvasW, canvasH)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	drawn := min(firstH, canvasH)
	draw.Draw(canvas, image.Rect(0, 0, canvasW, drawn), first, image.Point{}, draw.Src)
	prevSample := s.sampler.Sample(first)
	release()

	result := &Result{Frames: len(sorted)}
	log := s.logger.With("frames", len(sorted), "scale", scale)

	for i := 1; i < len(sorted) && drawn < canvasH; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "stitch canceled")
		}

		seam, sample, err := s.appendFrame(canvas, drawn, sorted[i-1], sorted[i], prevSample, scale, viewportHeight)
		if err != nil {
			return nil, err
		}
		drawn += seam.Drawn
		prevSample = sample
		result.Seams = append(result.Seams, seam)

		log.Debug("seam placed",
			"scroll_y", seam.ScrollY,
			"expected", seam.Expected,
			"offset", seam.Offset,
			"score", seam.Score,
			"matched", seam.Matched)
	}

	if drawn < canvasH {
		canvas = canvas.SubImage(image.Rect(0, 0, canvasW, drawn)).(*image.RGBA)
	}
	result.Image = canvas
	return result, nil
}

// step is the clamped scroll delta between two adjacent frames.
func (s *Stitcher) step(prev, next frame.Frame, viewportHeight int) int {
	return clamp(next.ScrollY-prev.ScrollY, s.opts.MinStep, viewportHeight)
}

// appendFrame draws the unseen lower part of next below row top of canvas.
func (s *Stitcher) appendFrame(
	canvas *image.RGBA,
	top int,
	prev, next frame.Frame,
	prevSample *luma.Sample,
	scale float64,
	viewportHeight int,
) (Seam, *luma.Sample, error) {
	bitmap, release, err := s.pool.acquire(next.Data)
	if err != nil {
		return Seam{}, nil, err
	}
	defer release()

	h := bitmap.Bounds().Dy()
	overlapCSS := max(0, viewportHeight-s.step(prev, next, viewportHeight))
	expected := clamp(int(math.Round(float64(overlapCSS)*scale)), 0, h-1)

	sample := s.sampler.Sample(bitmap)
	res := s.aligner.Align(prevSample, sample, expected)
	offset := s.aligner.NewWindow(expected, scale, h).Clamp(res.Offset)

	seam := Seam{
		ScrollY:  next.ScrollY,
		Expected: expected,
		Offset:   offset,
		Score:    res.Score,
		Matched:  res.Matched,
	}

	canvasW := canvas.Bounds().Dx()
	drawH := min(h-offset, canvas.Bounds().Dy()-top)
	if drawH <= 0 {
		return seam, sample, nil
	}

	dst := image.Rect(0, top, canvasW, top+drawH)
	if bitmap.Bounds().Dx() == canvasW {
		draw.Draw(canvas, dst, bitmap, image.Pt(0, offset), draw.Src)
	} else {
		// Frame width changed mid-session (zoom); fit it to the canvas.
		src := image.Rect(0, offset, bitmap.Bounds().Dx(), offset+drawH)
		xdraw.ApproxBiLinear.Scale(canvas, dst, bitmap, src, xdraw.Src, nil)
	}
	seam.Drawn = drawH
	return seam, sample, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
