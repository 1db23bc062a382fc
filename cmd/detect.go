package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Run face detection over still images",
	Long: `Run the same face detection the capture loop uses over still images
and report which of them contain a face. Useful for tuning CASCADE_PATH
and MIN_FACE_SIZE for a camera.

Examples:
  face-attendance detect snapshots/*.jpg
  face-attendance detect frame.png --min-size 60 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Int("min-size", 0, "Minimum face size in pixels (overrides MIN_FACE_SIZE)")
	detectCmd.Flags().Bool("json", false, "Output as JSON")
}

// detectResult is the per-image result of the detect command.
type detectResult struct {
	Path      string            `json:"path"`
	Face      bool              `json:"face"`
	Detection *detect.Detection `json:"detection,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	minSize := cfg.Detection.MinFaceSize
	if v := mustGetInt(cmd, "min-size"); v > 0 {
		minSize = v
	}
	jsonOutput := mustGetBool(cmd, "json")

	detector := vision.NewCascadeDetector(cfg.Detection.CascadePath, minSize)
	defer detector.Close()

	ctx := context.Background()
	gate := detect.NewGate(detector, slog.Default())
	gate.Init(ctx)

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	select {
	case <-gate.Ready():
	case <-loadCtx.Done():
		return fmt.Errorf("face detection models did not load: %w", loadCtx.Err())
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Detecting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]detectResult, 0, len(args))
	for _, path := range args {
		result := detectResult{Path: path}
		img, err := loadImage(path)
		if err != nil {
			result.Error = err.Error()
		} else if det := gate.Detect(ctx, img); det != nil {
			result.Face = true
			result.Detection = det
		}
		results = append(results, result)
		if bar != nil {
			bar.Add(1)
		}
	}

	if jsonOutput {
		return outputJSON(results)
	}

	fmt.Println()
	var faces, errs int
	for _, r := range results {
		switch {
		case r.Error != "":
			errs++
			fmt.Printf("  ERROR  %s: %s\n", r.Path, r.Error)
		case r.Face:
			faces++
			fmt.Printf("  FACE   %s (%d found, largest %dx%d)\n", r.Path, r.Detection.Faces,
				r.Detection.Box.Dx(), r.Detection.Box.Dy())
		default:
			fmt.Printf("  -      %s\n", r.Path)
		}
	}
	fmt.Printf("\n%d of %d images contain a face", faces, len(results))
	if errs > 0 {
		fmt.Printf(", %d errors", errs)
	}
	fmt.Println()
	return nil
}
