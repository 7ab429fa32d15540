// Package output names and writes finished screenshots.
package output

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/frame"
)

// Mode is the kind of capture that produced an image.
type Mode string

// Capture modes.
const (
	ModeVisible  Mode = "visible"
	ModeArea     Mode = "area"
	ModeExtended Mode = "extended"
	ModeFullPage Mode = "fullpage"
)

// Root is the directory, relative to the output directory, that all
// screenshots are filed under.
const Root = "Screenshots"

// Image is an encoded screenshot together with the number of frames that
// contributed to it.
type Image struct {
	Data   []byte
	Format frame.Format
	Width  int
	Height int
	Frames int
}

// BuildFilename returns the slash-separated relative name for a screenshot
// taken at t: Screenshots/<mode>/screenshot_<mode>_<YYYY-MM-DD_HH-MM-SS>.<ext>.
func BuildFilename(mode Mode, format frame.Format, t time.Time) string {
	name := fmt.Sprintf("screenshot_%s_%s.%s", mode, t.Format("2006-01-02_15-04-05"), format.Extension())
	return path.Join(Root, string(mode), name)
}

// DisplayName returns the last element of a slash-separated filename.
func DisplayName(filename string) string {
	return path.Base(filepath.ToSlash(filename))
}

// Save writes img below dir using BuildFilename and returns the full path.
// An existing file with the same name is not overwritten; a numeric suffix
// is added instead.
func Save(dir string, img Image, mode Mode, t time.Time) (string, error) {
	rel := filepath.FromSlash(BuildFilename(mode, img.Format, t))
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	ext := filepath.Ext(full)
	base := full[:len(full)-len(ext)]
	for i := 1; ; i++ {
		f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			full = fmt.Sprintf("%s_%d%s", base, i, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create output file: %w", err)
		}
		if _, err := f.Write(img.Data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write output file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close output file: %w", err)
		}
		return full, nil
	}
}
