package cmd

import (
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/station"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// newMatcherClient creates the matcher client from config.
func newMatcherClient(cfg *config.Config) (*matcher.Client, error) {
	client, err := matcher.NewClient(matcher.Config{
		BaseURL:    cfg.Matcher.URL,
		EntryPath:  cfg.Matcher.EntryPath,
		ExitPath:   cfg.Matcher.ExitPath,
		Timeout:    cfg.Matcher.Timeout,
		CaptureDir: cfg.Matcher.CaptureDir,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher client: %w", err)
	}
	return client, nil
}

// buildStation creates one station backed by OpenCV and the matcher client.
// Every station gets its own detector so no state is shared between them.
func buildStation(cfg *config.Config, sc config.StationConfig, client *matcher.Client, sinks ...notify.Sink) (*station.Station, error) {
	dir, err := attendance.ParseDirection(sc.Direction)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", sc.Name, err)
	}

	return station.New(station.Config{
		Name:        sc.Name,
		Direction:   dir,
		URL:         sc.URL,
		AutoStart:   cfg.StationAutoStart(sc),
		Interval:    cfg.Capture.TickInterval,
		SettleDelay: cfg.Capture.SettleDelay,
	}, station.Deps{
		Open:       vision.OpenVideo,
		Detector:   vision.NewCascadeDetector(cfg.Detection.CascadePath, cfg.Detection.MinFaceSize),
		Dispatcher: client,
		Sinks:      sinks,
		Logger:     slog.Default(),
	})
}

// buildManager creates every configured station.
func buildManager(cfg *config.Config, client *matcher.Client, sinks ...notify.Sink) (*station.Manager, error) {
	var stations []*station.Station
	for _, sc := range cfg.Stations {
		s, err := buildStation(cfg, sc, client, sinks...)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return station.NewManager(stations...)
}
