// Package testutil provides image fixtures and fakes shared by tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"sync"
	"testing"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
)

// Page returns a w x h image filled with deterministic high-contrast noise.
// Every row differs from its neighbours, so any vertical misalignment
// between two crops of the page shows up as a large luma difference.
func Page(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := noise(uint64(x), uint64(y))
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(v)
			img.Pix[i+1] = uint8(v >> 8)
			img.Pix[i+2] = uint8(v >> 16)
			img.Pix[i+3] = 0xff
		}
	}
	return img
}

// noise is a splitmix64 hash of the coordinates.
func noise(x, y uint64) uint64 {
	z := x*0x9e3779b97f4a7c15 + y*0xbf58476d1ce4e5b9 + 0x94d049bb133111eb
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Rows copies rows [y, y+h) of img into a new image anchored at the origin.
func Rows(img image.Image, y, h int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), h))
	draw.Draw(out, out.Bounds(), img, image.Pt(b.Min.X, b.Min.Y+y), draw.Src)
	return out
}

// EncodePNG encodes img or fails the test.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// Decode decodes an encoded image or fails the test.
func Decode(t testing.TB, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image.Decode: %v", err)
	}
	return img
}

// AssertSamePixels fails the test unless got and want have identical size
// and RGBA pixels.
func AssertSamePixels(t testing.TB, got, want image.Image) {
	t.Helper()
	gb, wb := got.Bounds(), want.Bounds()
	if gb.Dx() != wb.Dx() || gb.Dy() != wb.Dy() {
		t.Fatalf("size = %dx%d, want %dx%d", gb.Dx(), gb.Dy(), wb.Dx(), wb.Dy())
	}
	for y := 0; y < gb.Dy(); y++ {
		for x := 0; x < gb.Dx(); x++ {
			r1, g1, b1, a1 := got.At(gb.Min.X+x, gb.Min.Y+y).RGBA()
			r2, g2, b2, a2 := want.At(wb.Min.X+x, wb.Min.Y+y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				t.Fatalf("pixel (%d,%d) differs: got %v want %v", x, y,
					[4]uint32{r1, g1, b1, a1}, [4]uint32{r2, g2, b2, a2})
			}
		}
	}
}

// CaptureFunc adapts a function to browser.RawCapture.
type CaptureFunc func(ctx context.Context, windowID int, opts browser.CaptureOptions) ([]byte, error)

// CaptureVisible implements browser.RawCapture.
func (f CaptureFunc) CaptureVisible(ctx context.Context, windowID int, opts browser.CaptureOptions) ([]byte, error) {
	return f(ctx, windowID, opts)
}

// ScriptedCapture returns queued results in order, then repeats the
// fallback. It records how many calls were made.
type ScriptedCapture struct {
	mu       sync.Mutex
	results  []error
	data     []byte
	calls    int
	windowID []int
}

// NewScriptedCapture returns data on success; errs are returned by the first
// len(errs) calls (nil entries succeed).
func NewScriptedCapture(data []byte, errs ...error) *ScriptedCapture {
	return &ScriptedCapture{data: data, results: errs}
}

// CaptureVisible implements browser.RawCapture.
func (s *ScriptedCapture) CaptureVisible(_ context.Context, windowID int, _ browser.CaptureOptions) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.windowID = append(s.windowID, windowID)
	if len(s.results) > 0 {
		err := s.results[0]
		s.results = s.results[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.data, nil
}

// Calls returns the number of CaptureVisible calls so far.
func (s *ScriptedCapture) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// WindowIDs returns the window IDs passed to each call.
func (s *ScriptedCapture) WindowIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.windowID...)
}
