package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/depth-api/internal/imaging"
	"github.com/Brownie44l1/depth-api/internal/model"
	"github.com/Brownie44l1/depth-api/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Render the depth map of an image",
	RunE:  runDepth,
}

func init() {
	runCmd.Flags().StringP("input", "i", "", "Input image (PNG, JPEG, GIF, BMP, TIFF, WebP)")
	runCmd.Flags().StringP("output", "o", "depth.png", "Output depth map PNG")
	runCmd.Flags().String("preview", "", "Also write the resized input as PNG")
	runCmd.Flags().String("filter", "", "Resize filter (bilinear, lanczos3, nearest, catmullrom)")
	runCmd.Flags().Int("flat-value", 0, "Gray level for a flat depth map (0-255)")
	runCmd.Flags().Bool("transpose", false, "Swap rows and columns of the depth map")
	runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

func runDepth(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	previewPath, _ := cmd.Flags().GetString("preview")

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	engine, err := model.Open(settings.Model.Path, settings.ModelOptions())
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	defer engine.Close()

	result, err := pipeline.RunFile(inputPath, engine, settings.PipelineOptions())
	if err != nil {
		return fmt.Errorf("depth: %w", err)
	}

	if err := imaging.WritePNG(outputPath, result.Depth); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if previewPath != "" {
		if err := imaging.WritePNG(previewPath, result.Input); err != nil {
			return fmt.Errorf("writing preview: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rendered %dx%d → %dx%d depth map in %s\n",
		result.SrcWidth, result.SrcHeight, result.Depth.Bounds().Dx(), result.Depth.Bounds().Dy(),
		result.Timings.Total().Round(time.Millisecond))
	fmt.Fprintf(out, "Depth range: %g … %g", result.Stats.Min, result.Stats.Max)
	if result.Stats.Flat {
		fmt.Fprint(out, " (flat)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Output:  %s\n", outputPath)
	if previewPath != "" {
		fmt.Fprintf(out, "Preview: %s\n", previewPath)
	}
	return nil
}
