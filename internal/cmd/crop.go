package cmd

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/scrollstitch/internal/area"
	"github.com/Iron-Ham/scrollstitch/internal/output"
)

var (
	cropRect   string
	cropDPR    int
	cropOutDir string
)

var cropCmd = &cobra.Command{
	Use:   "crop <screenshot> --rect x,y,width,height",
	Short: "Cut a selected area out of a viewport screenshot",
	Long: `Cut a selected area out of a viewport screenshot.

The rectangle is given in CSS pixels of the viewport the screenshot was
taken from. Negative widths or heights select up or to the left, and the
selection is clipped to the viewport. Use --dpr when the screenshot was
taken on a display with a device pixel ratio above one.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrop,
}

func init() {
	rootCmd.AddCommand(cropCmd)
	cropCmd.Flags().StringVarP(&cropRect, "rect", "r", "", "selection as x,y,width,height in CSS pixels")
	cropCmd.Flags().IntVar(&cropDPR, "dpr", 1, "device pixel ratio of the screenshot")
	cropCmd.Flags().StringVarP(&cropOutDir, "out", "o", "", "directory to write the Screenshots tree to (default: output.dir)")
	_ = cropCmd.MarkFlagRequired("rect")
}

func runCrop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rect, err := area.ParseRect(cropRect)
	if err != nil {
		return err
	}
	if cropDPR < 1 {
		return fmt.Errorf("--dpr must be at least 1")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading screenshot: %w", err)
	}
	ic, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding screenshot: %w", err)
	}

	img, err := area.Crop(data, rect, ic.Width/cropDPR, ic.Height/cropDPR, cfg.AreaOptions())
	if err != nil {
		return err
	}

	dir, err := outputDir(cfg, cropOutDir)
	if err != nil {
		return err
	}
	_, err = saveImage(cmd.OutOrStdout(), dir, img, output.ModeArea)
	return err
}
