package frame

import (
	"fmt"
	"strings"
)

// Format is the encoding used for captured frames and stitched output.
type Format string

// Supported formats.
const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// DefaultJPEGQuality is used when a JPEG is requested without a quality.
const DefaultJPEGQuality = 92

// ParseFormat accepts "png", "jpeg" and "jpg" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png", "":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpeg"
	}
	return "png"
}

// MIMEType returns the media type of the encoding.
func (f Format) MIMEType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Lossy reports whether the format takes a quality parameter.
func (f Format) Lossy() bool {
	return f == FormatJPEG
}
