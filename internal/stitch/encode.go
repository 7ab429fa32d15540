package stitch

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/Iron-Ham/scrollstitch/internal/frame"
)

// Encode writes img to w in the given format. quality applies to JPEG only;
// values outside 1-100 are clamped and 0 selects frame.DefaultJPEGQuality.
func Encode(w io.Writer, img image.Image, format frame.Format, quality int) error {
	switch format {
	case frame.FormatJPEG:
		if quality == 0 {
			quality = frame.DefaultJPEGQuality
		}
		quality = min(max(quality, 1), 100)
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("stitch: encode JPEG: %w", err)
		}
	case frame.FormatPNG, "":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(w, img); err != nil {
			return fmt.Errorf("stitch: encode PNG: %w", err)
		}
	default:
		return fmt.Errorf("stitch: unsupported format %q", format)
	}
	return nil
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, format frame.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
