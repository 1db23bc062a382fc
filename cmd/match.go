package cmd

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Send a still image to the matcher once",
	Long: `Send one image to the remote matcher with the given direction, classify
the response and print the resulting alert. Useful for checking matcher
connectivity and for capturing response fixtures (see --capture).

Examples:
  face-attendance match face.jpg --direction entry
  face-attendance match face.jpg --direction exit --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("direction", "entry", "Direction tag: entry or exit")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

// matchResult is the JSON output of the match command.
type matchResult struct {
	Status       string              `json:"status"`
	Outcome      attendance.Outcome  `json:"outcome"`
	Notification notify.Notification `json:"notification"`
	Error        string              `json:"error,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := attendance.ParseDirection(mustGetString(cmd, "direction"))
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	img, err := loadImage(args[0])
	if err != nil {
		return err
	}

	client, err := newMatcherClient(cfg)
	if err != nil {
		return err
	}

	resp, sendErr := client.Send(context.Background(), img, dir)
	outcome := attendance.Classify(dir, resp, sendErr)
	n := notify.Render("cli", dir, outcome)

	if jsonOutput {
		result := matchResult{Outcome: outcome, Notification: n}
		if resp != nil {
			result.Status = resp.Status
		}
		if sendErr != nil {
			result.Error = sendErr.Error()
		}
		return outputJSON(result)
	}

	if sendErr != nil {
		fmt.Printf("Request failed: %v\n", sendErr)
	} else {
		fmt.Printf("Matcher status: %s\n", resp.Status)
		if m, ok := resp.First(); ok {
			fmt.Printf("Best match:     %s (%s)\n", m.Name, m.Category)
		}
	}
	fmt.Printf("Outcome:        %s\n", outcome.Kind)
	fmt.Printf("Alert [%s]:  %s\n", n.Tone, n.Message)
	return nil
}

// loadImage decodes a JPEG or PNG file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}
	return img, nil
}
