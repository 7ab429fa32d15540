// Package manifest reads and writes frame manifests: YAML files listing the
// frames of a capture next to the image files themselves, so a capture can
// be stitched again offline.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/scrollstitch/internal/frame"
)

// FileName is the manifest's name inside a frame directory.
const FileName = "manifest.yaml"

// Version is the manifest format version written by this package.
const Version = "1"

// Manifest describes one capture.
type Manifest struct {
	// Version is the manifest format version (currently "1")
	Version string `yaml:"version"`
	// Viewport is the viewport size in CSS pixels
	Viewport Viewport `yaml:"viewport"`
	// Format is the encoding of the frame files (optional, defaults to png)
	Format string `yaml:"format,omitempty"`
	// CapturedAt is when the first frame was taken (optional)
	CapturedAt time.Time `yaml:"captured_at,omitempty"`
	// Frames lists the frames in capture order
	Frames []Entry `yaml:"frames"`
}

// Viewport is a viewport size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Entry is one frame.
type Entry struct {
	// ScrollY is the reported scroll position in CSS pixels
	ScrollY int `yaml:"scroll_y"`
	// File is the image path, relative to the manifest's directory
	File string `yaml:"file"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks that the manifest is well-formed.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return errors.New("manifest version is required")
	}
	if m.Version != Version {
		return fmt.Errorf("unsupported manifest version: %s (supported: %s)", m.Version, Version)
	}
	if m.Viewport.Width <= 0 || m.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", m.Viewport.Width, m.Viewport.Height)
	}
	if _, err := frame.ParseFormat(m.Format); err != nil {
		return err
	}
	if len(m.Frames) == 0 {
		return errors.New("at least one frame is required")
	}
	for i, e := range m.Frames {
		if e.File == "" {
			return fmt.Errorf("frame %d: file is required", i)
		}
		if filepath.IsAbs(e.File) {
			return fmt.Errorf("frame %d: file must be relative: %s", i, e.File)
		}
		if e.ScrollY < 0 {
			return fmt.Errorf("frame %d: scroll_y must be non-negative, got %d", i, e.ScrollY)
		}
	}
	return nil
}

// FrameFormat returns the encoding of the frame files.
func (m *Manifest) FrameFormat() frame.Format {
	f, err := frame.ParseFormat(m.Format)
	if err != nil {
		return frame.FormatPNG
	}
	return f
}

// ReadFrames loads the frame files, resolving them against dir.
func (m *Manifest) ReadFrames(dir string) ([]frame.Frame, error) {
	frames := make([]frame.Frame, 0, len(m.Frames))
	for i, e := range m.Frames {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(e.File)))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, frame.Frame{ScrollY: e.ScrollY, Data: data, CapturedAt: m.CapturedAt})
	}
	return frames, nil
}

// Save validates m and writes it to path.
func (m *Manifest) Save(path string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Dump writes frames into dir as frame_NNN.<ext> files together with a
// manifest, and returns the manifest.
func Dump(dir string, frames []frame.Frame, viewportWidth, viewportHeight int, format frame.Format) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}

	m := &Manifest{
		Version:  Version,
		Viewport: Viewport{Width: viewportWidth, Height: viewportHeight},
		Format:   string(format),
		Frames:   make([]Entry, 0, len(frames)),
	}
	if len(frames) > 0 {
		m.CapturedAt = frames[0].CapturedAt
	}
	for i, f := range frames {
		name := fmt.Sprintf("frame_%03d.%s", i, format.Extension())
		if err := os.WriteFile(filepath.Join(dir, name), f.Data, 0o644); err != nil {
			return nil, fmt.Errorf("writing frame %d: %w", i, err)
		}
		m.Frames = append(m.Frames, Entry{ScrollY: f.ScrollY, File: name})
	}

	if err := m.Save(filepath.Join(dir, FileName)); err != nil {
		return nil, err
	}
	return m, nil
}
