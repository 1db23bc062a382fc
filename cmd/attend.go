package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/spf13/cobra"
)

var attendCmd = &cobra.Command{
	Use:   "attend <station>",
	Short: "Run a single station headless",
	Long: `Run one configured station without the web server and print its
attendance alerts to the console.

The capture loop starts disabled unless --start is given. Send SIGUSR1 to
toggle it while running:

  kill -USR1 <pid>`,
	Args: cobra.ExactArgs(1),
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().Bool("start", false, "Enable the capture loop immediately")
	attendCmd.Flags().String("url", "", "Override the station's stream URL")
	attendCmd.Flags().Int("status-every", 0, "Print loop status every N seconds (0 = never)")
}

func runAttend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := args[0]
	idx := -1
	for i, sc := range cfg.Stations {
		if sc.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("station %q not configured", name)
	}
	sc := cfg.Stations[idx]
	if url := mustGetString(cmd, "url"); url != "" {
		sc.URL = url
	}
	start := mustGetBool(cmd, "start")
	sc.AutoStart = &start

	client, err := newMatcherClient(cfg)
	if err != nil {
		return err
	}
	st, err := buildStation(cfg, sc, client, notify.NewConsoleSink(os.Stdout))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Mount(ctx); err != nil {
		return fmt.Errorf("mounting station: %w", err)
	}
	defer st.Unmount()

	fmt.Printf("Station %s (%s) watching %s\n", st.Name(), st.Direction(), sc.URL)
	if start {
		fmt.Println("Capture loop enabled")
	} else {
		fmt.Printf("Capture loop disabled, send SIGUSR1 to pid %d to enable\n", os.Getpid())
	}
	fmt.Println("Press Ctrl+C to stop")

	playing := make(chan error, 1)
	go func() { playing <- st.WaitPlaying(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	var statusTick <-chan time.Time
	if every := mustGetInt(cmd, "status-every"); every > 0 {
		ticker := time.NewTicker(time.Duration(every) * time.Second)
		defer ticker.Stop()
		statusTick = ticker.C
	}

	for {
		select {
		case sig := <-sigChan:
			if sig != syscall.SIGUSR1 {
				fmt.Println("\nShutting down...")
				return nil
			}
			if st.Status().Loop.Enabled {
				st.Stop()
				fmt.Println("Capture loop disabled")
			} else {
				st.Start()
				fmt.Println("Capture loop enabled")
			}
		case err := <-playing:
			if err == nil {
				fmt.Println("Stream playing")
			}
			playing = nil
		case <-statusTick:
			s := st.Status()
			fmt.Printf("[%s] state=%s playing=%v frames=%d dispatches=%d\n",
				time.Now().Format("15:04:05"), s.Loop.State, s.Stream.Playing,
				s.Stream.FramesDecoded, s.Loop.Stats.Dispatches)
		}
	}
}
