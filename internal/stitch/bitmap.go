package stitch

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"sync"

	"github.com/Iron-Ham/scrollstitch/internal/errors"
)

// bitmapPool recycles decoded frame buffers between frames of a stitch
// pass. Frames of one session share a size, so buffers are bucketed by
// dimensions.
type bitmapPool struct {
	mu        sync.Mutex
	buckets   map[image.Point][]*image.RGBA
	perBucket int
}

func newBitmapPool(perBucket int) *bitmapPool {
	return &bitmapPool{
		buckets:   make(map[image.Point][]*image.RGBA),
		perBucket: perBucket,
	}
}

func (p *bitmapPool) get(size image.Point) *image.RGBA {
	p.mu.Lock()
	bucket := p.buckets[size]
	if n := len(bucket); n > 0 {
		img := bucket[n-1]
		p.buckets[size] = bucket[:n-1]
		p.mu.Unlock()
		return img
	}
	p.mu.Unlock()
	return image.NewRGBA(image.Rectangle{Max: size})
}

func (p *bitmapPool) put(img *image.RGBA) {
	size := img.Bounds().Size()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buckets[size]) >= p.perBucket {
		return
	}
	p.buckets[size] = append(p.buckets[size], img)
}

// acquire decodes an encoded frame into a pooled RGBA buffer anchored at the
// origin. The caller must call release exactly once when done with the
// bitmap; the bitmap must not be used afterwards.
func (p *bitmapPool) acquire(data []byte) (img *image.RGBA, release func(), err error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode frame")
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, nil, errors.NewStitchError("frame has no pixels", errors.ErrInvalidInput)
	}

	dst := p.get(b.Size())
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	var once sync.Once
	return dst, func() { once.Do(func() { p.put(dst) }) }, nil
}
