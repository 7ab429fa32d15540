package cmd

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/scrollstitch/internal/browser"
	"github.com/Iron-Ham/scrollstitch/internal/config"
	"github.com/Iron-Ham/scrollstitch/internal/event"
	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/fullpage"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
	"github.com/Iron-Ham/scrollstitch/internal/manifest"
	"github.com/Iron-Ham/scrollstitch/internal/output"
	"github.com/Iron-Ham/scrollstitch/internal/replay"
	"github.com/Iron-Ham/scrollstitch/internal/session"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
	"github.com/Iron-Ham/scrollstitch/internal/throttle"
)

var (
	simViewportHeight int
	simStep           int
	simJitter         int
	simDPR            int
	simFullPage       bool
	simDelay          time.Duration
	simInterval       time.Duration
	simDumpDir        string
	simOutDir         string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <page-image>",
	Short: "Record a simulated scroll through a tall image",
	Long: `Record a simulated scroll through a tall image.

The image stands in for a web page seen through a viewport. By default the
page is scrolled from top to bottom while an extended capture session
records it, exactly as it would record a person scrolling. With --full-page
the page is instead scrolled programmatically one viewport at a time.

--jitter makes the simulated page misreport its scroll position, which
exercises seam refinement. --dump writes every raw capture plus a manifest
so the result can be stitched again with 'scrollstitch stitch'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simViewportHeight, "viewport-height", 800, "viewport height in CSS pixels")
	simulateCmd.Flags().IntVar(&simStep, "step", 0, "scroll step in CSS pixels (default: 3/4 of the viewport)")
	simulateCmd.Flags().IntVar(&simJitter, "jitter", 0, "misreport scroll positions by up to this many CSS pixels")
	simulateCmd.Flags().IntVar(&simDPR, "dpr", 1, "device pixel ratio of the page image")
	simulateCmd.Flags().BoolVar(&simFullPage, "full-page", false, "capture by scrolling programmatically instead of recording")
	simulateCmd.Flags().DurationVar(&simDelay, "delay", 0, "pause between scroll steps (default: twice the capture interval)")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 0, "minimum time between captures (default: capture.throttle_interval_ms)")
	simulateCmd.Flags().StringVar(&simDumpDir, "dump", "", "write raw captures and a manifest to this directory")
	simulateCmd.Flags().StringVarP(&simOutDir, "out", "o", "", "directory to write the Screenshots tree to (default: output.dir)")
}

// recorder keeps every successful capture together with the scroll
// position the tab reported when it was taken.
type recorder struct {
	inner browser.RawCapture
	probe browser.PageProbe

	mu     sync.Mutex
	frames []frame.Frame
}

func (r *recorder) CaptureVisible(ctx context.Context, windowID int, opts browser.CaptureOptions) ([]byte, error) {
	geo, err := r.probe.Geometry(ctx)
	if err != nil {
		return nil, err
	}
	data, err := r.inner.CaptureVisible(ctx, windowID, opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.frames = append(r.frames, frame.Frame{ScrollY: geo.ScrollY, Data: data, CapturedAt: time.Now()})
	r.mu.Unlock()
	return data, nil
}

func (r *recorder) Frames() []frame.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame.Frame(nil), r.frames...)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Capture.ThrottleIntervalMs = int(simInterval / time.Millisecond)
	}
	out := &syncWriter{w: cmd.OutOrStdout()}
	logger, err := newLogger(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	page, err := loadPage(args[0])
	if err != nil {
		return err
	}
	if simViewportHeight <= 0 {
		return fmt.Errorf("--viewport-height must be positive")
	}
	tab := replay.NewTab(1, page, simViewportHeight,
		replay.WithDevicePixelRatio(simDPR),
		replay.WithJitter(simJitter))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := &recorder{inner: tab, probe: tab}
	thr := throttle.New(rec, cfg.ThrottleOptions(logger))
	defer thr.Close()
	stitcher := stitch.New(cfg.StitchOptions(), logger)

	var (
		img  *output.Image
		mode output.Mode
	)
	if simFullPage {
		mode = output.ModeFullPage
		fmt.Fprintln(out, "capturing full page")
		img, err = fullpage.New(thr, stitcher, cfg.FullPageOptions(), logger).Capture(ctx, tab)
	} else {
		mode = output.ModeExtended
		img, err = recordScroll(ctx, cfg, tab, thr, stitcher, logger, out)
	}
	if err != nil {
		return err
	}

	if simDumpDir != "" {
		geo, _ := tab.Geometry(context.Background())
		m, err := manifest.Dump(simDumpDir, rec.Frames(), geo.ViewportWidth, geo.ViewportHeight, cfg.Capture.CaptureOptions().Format)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Dumped %d captures to %s\n", len(m.Frames), simDumpDir)
	}

	dir, err := outputDir(cfg, simOutDir)
	if err != nil {
		return err
	}
	_, err = saveImage(out, dir, img, mode)
	return err
}

// recordScroll runs an extended capture session while the tab is scrolled
// from top to bottom.
func recordScroll(ctx context.Context, cfg *config.Config, tab *replay.Tab, capture browser.RawCapture,
	stitcher *stitch.Stitcher, logger *logging.Logger, out *syncWriter) (*output.Image, error) {
	bus := event.NewBus()
	defer bus.Unsubscribe(printEvents(bus, out))

	reg := session.NewRegistry(cfg.SessionOptions(), session.Deps{
		Capture:  capture,
		Stitcher: stitcher,
		Bus:      bus,
		Logger:   logger,
	})
	defer reg.Close()

	if _, err := reg.Start(ctx, tab); err != nil {
		return nil, err
	}

	geo, _ := tab.Geometry(ctx)
	step := simStep
	if step <= 0 {
		step = max(geo.ViewportHeight*3/4, 1)
	}
	delay := simDelay
	if delay <= 0 {
		delay = 2 * cfg.Capture.ThrottleInterval()
	}

	err := replay.Play(ctx, tab, replay.Steps(tab, step), delay, func(obs browser.Observation) {
		reg.Observe(tab.ID(), obs)
	})
	if err != nil {
		reg.Cancel(tab.ID())
		return nil, err
	}
	return reg.Finish(ctx, tab.ID())
}

func loadPage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page image: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding page image: %w", err)
	}
	return img, nil
}
