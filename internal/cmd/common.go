package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Iron-Ham/scrollstitch/internal/config"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
	"github.com/Iron-Ham/scrollstitch/internal/event"
	"github.com/Iron-Ham/scrollstitch/internal/output"
)

// loadConfig returns the validated configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// outputDir resolves where screenshots are written: the --out flag when
// given, otherwise output.dir relative to the working directory.
func outputDir(cfg *config.Config, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return cfg.Output.ResolveOutputDir(cwd), nil
}

// saveImage writes img under dir and reports the result on w.
func saveImage(w io.Writer, dir string, img *output.Image, mode output.Mode) (string, error) {
	path, err := output.Save(dir, *img, mode, time.Now())
	if err != nil {
		return "", err
	}
	fmt.Fprintf(w, "Saved %s (%dx%d, %d frames)\n", path, img.Width, img.Height, img.Frames)
	return path, nil
}

// syncWriter serializes writes from event handlers running on session
// goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printEvents writes a line per session event to w. It returns the
// subscription ID.
func printEvents(bus *event.Bus, w io.Writer) string {
	return bus.SubscribeAll(func(e event.Event) {
		switch e := e.(type) {
		case event.SessionStartedEvent:
			fmt.Fprintf(w, "recording: viewport %dx%d at y=%d\n", e.ViewportWidth, e.ViewportHeight, e.ScrollY)
		case event.FrameCapturedEvent:
			fmt.Fprintf(w, "captured y=%d (%d frames, %d pending)\n", e.ScrollY, e.Frames, e.Pending)
		case event.FrameSkippedEvent:
			fmt.Fprintf(w, "skipped y=%d\n", e.ScrollY)
		case event.CaptureFailedEvent:
			fmt.Fprintf(w, "capture failed at y=%d: %s\n", e.ScrollY, errors.FriendlyMessage(e.Err))
		case event.SessionCancelledEvent:
			fmt.Fprintf(w, "cancelled: %s\n", e.Reason)
		}
	})
}
