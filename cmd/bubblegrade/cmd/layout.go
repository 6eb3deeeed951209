package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bubblegrade/internal/config"
	"github.com/MeKo-Tech/bubblegrade/internal/enhance"
	"github.com/MeKo-Tech/bubblegrade/internal/layout"
	"github.com/MeKo-Tech/bubblegrade/internal/pdf"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// layoutCmd runs enhancement and layout detection only, for diagnosing
// sheets where region placement goes wrong.
var layoutCmd = &cobra.Command{
	Use:   "layout [file]",
	Short: "Detect sheet regions without grading",
	Long: `Layout enhances the photograph and reports where the nombre, CURP,
and OMR regions land, without grading anything. Use it to check a
sheet before grading, or to see why grading picked up the wrong area.

With --overlay, the detected regions are drawn onto a copy of the
image: nombre in green, CURP in blue, OMR in red.

Examples:
  bubblegrade layout sheet.jpg
  bubblegrade layout sheet.jpg --format json
  bubblegrade layout sheet.jpg --overlay regions.png`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runLayout,
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	enhancer, err := enhance.NewEnhancer(cfg.Pipeline.Enhance)
	if err != nil {
		return fmt.Errorf("failed to create enhancer: %w", err)
	}
	detector, err := layout.NewDetector(cfg.Pipeline.Layout)
	if err != nil {
		return fmt.Errorf("failed to create layout detector: %w", err)
	}

	img, err := loadSheetImage(args[0])
	if err != nil {
		return err
	}

	enhanced := enhancer.EnhanceImage(img)
	regions, err := detector.Detect(enhanced)
	if err != nil {
		return fmt.Errorf("layout detection failed: %w", err)
	}

	if overlayPath, _ := cmd.Flags().GetString("overlay"); overlayPath != "" {
		if err := writeOverlay(enhanced, regions, overlayPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved overlay: %s\n", overlayPath)
	}

	format, _ := cmd.Flags().GetString("format")
	if format == config.FormatJSON {
		data, err := json.MarshalIndent(regions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal regions: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), formatRegions(regions))
	return nil
}

// loadSheetImage reads an image or PDF file from disk. For PDFs the
// scan image is pulled from the first page.
func loadSheetImage(path string) (image.Image, error) {
	if utils.IsPDF(path) {
		data, err := os.ReadFile(path) //nolint:gosec // user-supplied input path
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF: %w", err)
		}
		img, err := pdf.ExtractScanImage(data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract image from PDF: %w", err)
		}
		return img, nil
	}
	return utils.LoadImage(path)
}

func formatRegions(regions *scan.RegionSet) string {
	var sb strings.Builder
	if regions.Fallback {
		sb.WriteString("boundary: not found, full-frame fallback\n")
	} else {
		sb.WriteString("boundary: detected\n")
	}
	for _, entry := range []struct {
		name   string
		region scan.Region
	}{
		{"nombre", regions.Nombre},
		{"curp", regions.CURP},
		{"omr", regions.OMR},
	} {
		sb.WriteString(fmt.Sprintf("%-6s x=%d y=%d w=%d h=%d\n",
			entry.name, entry.region.X, entry.region.Y, entry.region.Width, entry.region.Height))
	}
	return sb.String()
}

// writeOverlay draws the detected regions onto a copy of the image.
func writeOverlay(img image.Image, regions *scan.RegionSet, path string) error {
	overlay := layout.RenderOverlay(img, regions, 3)
	if err := utils.SaveImage(overlay, path); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	cmd.Flags().String("overlay", "", "write an image with the detected regions drawn on it")
}

// GetLayoutCommand returns the layout command for testing purposes.
func GetLayoutCommand() *cobra.Command {
	return layoutCmd
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	addLayoutFlags(layoutCmd)
}
