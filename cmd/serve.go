package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run all stations and the web server",
	Long: `Mount every configured station and start the web server.
The web server exposes station status, start/stop toggles, live snapshots,
a server-sent event stream of attendance alerts and a kiosk dashboard.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("start", false, "Enable every station's capture loop on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if mustGetBool(cmd, "start") {
		cfg.Capture.AutoStart = true
		for i := range cfg.Stations {
			cfg.Stations[i].AutoStart = nil
		}
	}

	client, err := newMatcherClient(cfg)
	if err != nil {
		return err
	}
	manager, err := buildManager(cfg, client)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Mounting %d stations...\n", len(cfg.Stations))
	if err := manager.MountAll(ctx); err != nil {
		return fmt.Errorf("mounting stations: %w", err)
	}

	server := web.NewServer(cfg, manager)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer shutdownCancel()

		// stations first so SSE streams end before the server waits on them
		manager.UnmountAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	for _, st := range manager.List() {
		status := st.Status()
		fmt.Printf("  %-10s %-5s %s\n", status.Name, status.Direction, status.URL)
	}
	fmt.Printf("Starting Face Attendance on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		manager.UnmountAll()
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
