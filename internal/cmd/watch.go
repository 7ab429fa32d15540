package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/scrollstitch/internal/config"
	"github.com/Iron-Ham/scrollstitch/internal/event"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
	"github.com/Iron-Ham/scrollstitch/internal/output"
	"github.com/Iron-Ham/scrollstitch/internal/session"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
	"github.com/Iron-Ham/scrollstitch/internal/throttle"
	"github.com/Iron-Ham/scrollstitch/internal/tui"
	"github.com/Iron-Ham/scrollstitch/internal/watch"
)

const watchTabID = 1

var (
	watchPattern string
	watchDPR     int
	watchOutDir  string
	watchPlain   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Record screenshots dropped into a directory",
	Long: `Record screenshots dropped into a directory as one scrolling capture.

Every new file matching the pattern is treated as the viewport after a
scroll. The scroll position is read from the last number in the file name,
so shot_0.png, shot_750.png, ... describe a page scrolled to 0 and 750 CSS
pixels. The session starts with the first screenshot.

In a terminal a live dashboard is shown: press f to stitch and save, c to
discard. Otherwise progress is printed line by line and the session is
stitched when the process is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchPattern, "pattern", "p", "", "glob for screenshot file names (default: watch.pattern)")
	watchCmd.Flags().IntVar(&watchDPR, "dpr", 1, "device pixel ratio of the screenshots")
	watchCmd.Flags().StringVarP(&watchOutDir, "out", "o", "", "directory to write the Screenshots tree to (default: output.dir)")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print progress lines even in a terminal")
}

// watchRun holds the pieces of a running watch session.
type watchRun struct {
	cfg    *config.Config
	src    *watch.Source
	thr    *throttle.Throttle
	reg    *session.Registry
	bus    *event.Bus
	outDir string
}

func (w *watchRun) close() {
	w.reg.Close()
	w.thr.Close()
	w.src.Stop()
}

// finish stitches the recording and saves it.
func (w *watchRun) finish(ctx context.Context) (tui.Result, error) {
	img, err := w.reg.Finish(ctx, watchTabID)
	if err != nil {
		return tui.Result{}, err
	}
	path, err := output.Save(w.outDir, *img, output.ModeExtended, time.Now())
	if err != nil {
		return tui.Result{}, err
	}
	return tui.Result{Path: path, Width: img.Width, Height: img.Height, Frames: img.Frames}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchPattern != "" {
		cfg.Watch.Pattern = watchPattern
	}
	interactive := !watchPlain && term.IsTerminal(int(os.Stdout.Fd()))

	logger, err := newLogger(cfg, cmd.ErrOrStderr(), interactive)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	outDir, err := outputDir(cfg, watchOutDir)
	if err != nil {
		return err
	}

	lock, err := watch.AcquireLock(args[0], logger)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	opts := cfg.WatchOptions(logger)
	opts.DevicePixelRatio = watchDPR
	opts.TabID = watchTabID
	opts.WindowID = watchTabID
	src, err := watch.New(args[0], opts)
	if err != nil {
		return err
	}
	src.Start()

	thr := throttle.New(src, cfg.ThrottleOptions(logger))
	bus := event.NewBus()
	run := &watchRun{
		cfg: cfg,
		src: src,
		thr: thr,
		bus: bus,
		reg: session.NewRegistry(cfg.SessionOptions(), session.Deps{
			Capture:  thr,
			Stitcher: stitch.New(cfg.StitchOptions(), logger),
			Bus:      bus,
			Logger:   logger,
		}),
		outDir: outDir,
	}
	defer run.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interactive {
		return watchInteractive(ctx, cmd, run)
	}
	return watchPlainOutput(ctx, cmd, run, logger)
}

func watchInteractive(ctx context.Context, cmd *cobra.Command, run *watchRun) error {
	events, unsubscribe := tui.Subscribe(run.bus, 64)
	defer unsubscribe()

	driveCtx, cancelDrive := context.WithCancel(ctx)
	defer cancelDrive()
	driveErr := make(chan error, 1)
	go func() { driveErr <- watch.Drive(driveCtx, run.src, run.reg) }()

	model := tui.New("scrollstitch watch "+cmd.Flags().Arg(0), events, tui.Actions{
		Finish: func() (tui.Result, error) {
			cancelDrive()
			return run.finish(context.WithoutCancel(ctx))
		},
		Cancel: func() {
			cancelDrive()
			run.reg.Cancel(watchTabID)
		},
	})
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	cancelDrive()
	if err := <-driveErr; err != nil {
		return err
	}
	if m, ok := final.(tui.Model); ok {
		switch m.Phase() {
		case tui.PhaseDone:
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", m.Result().Path)
		case tui.PhaseFailed:
			return m.Err()
		}
	}
	return nil
}

func watchPlainOutput(ctx context.Context, cmd *cobra.Command, run *watchRun, logger *logging.Logger) error {
	out := &syncWriter{w: cmd.OutOrStdout()}
	defer run.bus.Unsubscribe(printEvents(run.bus, out))

	fmt.Fprintf(out, "watching %s for %s (interrupt to stitch)\n", cmd.Flags().Arg(0), run.cfg.Watch.Pattern)
	if err := watch.Drive(ctx, run.src, run.reg); err != nil {
		return err
	}

	logger.Info("watch stopped, stitching")
	res, err := run.finish(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s (%dx%d, %d frames)\n", res.Path, res.Width, res.Height, res.Frames)
	return nil
}
