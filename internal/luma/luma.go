// Package luma reduces frames to small grayscale grids that are cheap to
// compare row by row.
package luma

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// DefaultMaxWidth bounds the width of a sample in pixels.
const DefaultMaxWidth = 320

// Sample is a row-major grid of 8-bit intensities.
type Sample struct {
	Width  int
	Height int
	// ScaleY is Height divided by the source image height.
	ScaleY float64
	Pix    []uint8
}

// Row returns the intensities of row y.
func (s *Sample) Row(y int) []uint8 {
	return s.Pix[y*s.Width : (y+1)*s.Width]
}

// Sampler downsamples images into Samples. It is stateless and safe for
// concurrent use.
type Sampler struct {
	maxWidth int
}

// NewSampler returns a Sampler that produces samples at most maxWidth wide.
// A non-positive maxWidth selects DefaultMaxWidth.
func NewSampler(maxWidth int) *Sampler {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Sampler{maxWidth: maxWidth}
}

// Value converts an 8-bit RGB triple to luma with the fixed-point weights
// 77/150/29 (about 0.30/0.59/0.11).
func Value(r, g, b uint8) uint8 {
	return uint8((uint32(r)*77 + uint32(g)*150 + uint32(b)*29) >> 8)
}

// Sample returns the luma grid of img, or nil when img is nil or empty.
// A nil Sample means alignment is unavailable for this frame, which is not
// an error.
func (s *Sampler) Sample(img image.Image) *Sample {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil
	}

	w := min(b.Dx(), s.maxWidth)
	h := max(1, int(math.Round(float64(b.Dy())*float64(w)/float64(b.Dx()))))

	src := toRGBA(img, w, h)

	out := &Sample{
		Width:  w,
		Height: h,
		ScaleY: float64(h) / float64(b.Dy()),
		Pix:    make([]uint8, w*h),
	}
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dst := out.Pix[y*w : (y+1)*w]
		for x := range dst {
			p := row[x*4 : x*4+3]
			dst[x] = Value(p[0], p[1], p[2])
		}
	}
	return out
}

// toRGBA returns img as a w x h RGBA image anchored at the origin,
// resampling only when the size changes.
func toRGBA(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
			return rgba
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
