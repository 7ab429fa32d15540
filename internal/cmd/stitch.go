package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/scrollstitch/internal/frame"
	"github.com/Iron-Ham/scrollstitch/internal/manifest"
	"github.com/Iron-Ham/scrollstitch/internal/output"
	"github.com/Iron-Ham/scrollstitch/internal/stitch"
)

var (
	stitchOutDir    string
	stitchShowSeams bool
)

var stitchCmd = &cobra.Command{
	Use:   "stitch <manifest|dir>",
	Short: "Stitch the frames listed in a manifest",
	Long: `Stitch the frames listed in a frame manifest into one image.

The argument is either a manifest file or a directory containing
manifest.yaml, such as one written by 'scrollstitch simulate --dump'.
Frames closer together than capture.dedupe_radius_px are merged first.`,
	Args: cobra.ExactArgs(1),
	RunE: runStitch,
}

func init() {
	rootCmd.AddCommand(stitchCmd)
	stitchCmd.Flags().StringVarP(&stitchOutDir, "out", "o", "", "directory to write the Screenshots tree to (default: output.dir)")
	stitchCmd.Flags().BoolVar(&stitchShowSeams, "seams", false, "print how each frame was joined")
}

func runStitch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr(), false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	path := args[0]
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, manifest.FileName)
	}
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	frames, err := m.ReadFrames(filepath.Dir(path))
	if err != nil {
		return err
	}
	frames = frame.Dedupe(frames, cfg.Capture.DedupeRadiusPx)

	stitcher := stitch.New(cfg.StitchOptions(), logger)
	res, err := stitcher.Stitch(cmd.Context(), frames, m.Viewport.Width, m.Viewport.Height)
	if err != nil {
		return err
	}

	capture := cfg.Capture.CaptureOptions()
	data, err := res.Encode(capture.Format, capture.Quality)
	if err != nil {
		return err
	}
	b := res.Image.Bounds()
	img := &output.Image{Data: data, Format: capture.Format, Width: b.Dx(), Height: b.Dy(), Frames: res.Frames}

	if stitchShowSeams {
		printSeams(cmd, res.Seams)
	}

	dir, err := outputDir(cfg, stitchOutDir)
	if err != nil {
		return err
	}
	_, err = saveImage(cmd.OutOrStdout(), dir, img, output.ModeExtended)
	return err
}

func printSeams(cmd *cobra.Command, seams []stitch.Seam) {
	w := cmd.OutOrStdout()
	for _, s := range seams {
		score := "-"
		if !math.IsInf(s.Score, 1) {
			score = fmt.Sprintf("%.2f", s.Score)
		}
		status := "expected"
		if s.Matched {
			status = "matched"
		}
		fmt.Fprintf(w, "y=%-6d overlap %4d (expected %4d) rows +%-5d score %-6s %s\n",
			s.ScrollY, s.Offset, s.Expected, s.Drawn, score, status)
	}
}
