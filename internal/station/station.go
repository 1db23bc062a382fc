// Package station assembles one attendance screen: a live stream, a face
// detection gate, the capture loop and the notification sinks.
package station

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/matcher"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

// Errors returned by Station and Manager.
var (
	ErrStationNotFound = errors.New("station not found")
	ErrAlreadyMounted  = errors.New("station already mounted")
	ErrNotPlaying      = stream.ErrNotPlaying
)

// Config describes one station.
type Config struct {
	Name        string
	Direction   attendance.Direction
	URL         string
	AutoStart   bool
	Interval    time.Duration
	SettleDelay time.Duration
}

// Deps are the collaborators a station is built from.
type Deps struct {
	Open       stream.Opener
	Detector   detect.Detector
	Dispatcher capture.Dispatcher
	Reconnect  stream.ReconnectConfig
	// Sinks receive every notification in addition to the log and the
	// station's broadcaster
	Sinks  []notify.Sink
	Logger *slog.Logger
}

// Station is one attendance screen. It is mounted at most once.
type Station struct {
	cfg    Config
	logger *slog.Logger

	source      *stream.Source
	detector    detect.Detector
	gate        *detect.Gate
	loop        *capture.Loop
	broadcaster *notify.Broadcaster

	mu        sync.Mutex
	mounted   bool
	unmounted bool
	mountedAt time.Time
	cancel    context.CancelFunc
	released  chan struct{}
	wg        sync.WaitGroup
}

// Status is a snapshot of a station.
type Status struct {
	Name      string               `json:"name"`
	Direction attendance.Direction `json:"direction"`
	URL       string               `json:"url"`
	Mounted   bool                 `json:"mounted"`
	MountedAt time.Time            `json:"mounted_at,omitzero"`
	Loop      capture.Status       `json:"loop"`
	Stream    stream.Stats         `json:"stream"`
	Listeners int                  `json:"listeners"`
}

// New builds an unmounted station.
func New(cfg Config, deps Deps) (*Station, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("station name is required")
	}
	if !cfg.Direction.Valid() {
		return nil, fmt.Errorf("station %s: invalid direction", cfg.Name)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("station %s: stream URL is required", cfg.Name)
	}
	if deps.Open == nil || deps.Detector == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("station %s: opener, detector and dispatcher are required", cfg.Name)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reconnect := deps.Reconnect
	if reconnect.InitialDelay <= 0 || reconnect.MaxDelay <= 0 {
		reconnect = stream.DefaultReconnectConfig()
	}

	s := &Station{
		cfg:         cfg,
		logger:      logger.With("station", cfg.Name),
		broadcaster: notify.NewBroadcaster(constants.RecentNotifications),
		detector:    deps.Detector,
	}
	s.source = stream.NewSource(cfg.URL, deps.Open,
		stream.WithReconnect(reconnect), stream.WithLogger(s.logger))
	s.gate = detect.NewGate(deps.Detector, s.logger)

	sinks := notify.Multi{notify.LogSink{Logger: s.logger}, s.broadcaster}
	sinks = append(sinks, deps.Sinks...)

	s.loop = capture.NewLoop(capture.Config{
		Station:     cfg.Name,
		Direction:   cfg.Direction,
		Interval:    cfg.Interval,
		SettleDelay: cfg.SettleDelay,
	}, s.source, s.gate, deps.Dispatcher, sinks, logger)

	return s, nil
}

// Name returns the station name.
func (s *Station) Name() string { return s.cfg.Name }

// Direction returns the station's fixed direction.
func (s *Station) Direction() attendance.Direction { return s.cfg.Direction }

// Broadcaster returns the station's notification fan-out.
func (s *Station) Broadcaster() *notify.Broadcaster { return s.broadcaster }

// Mount attaches the stream, starts model loading and runs the capture loop
// until Unmount or ctx ends.
func (s *Station) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted || s.unmounted {
		return ErrAlreadyMounted
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := s.source.Attach(ctx); err != nil {
		cancel()
		return fmt.Errorf("attach stream: %w", err)
	}
	s.gate.Init(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.gate.Ready():
			s.loop.MarkModelsReady()
		case <-ctx.Done():
		}
	}()
	go func() {
		defer s.wg.Done()
		s.loop.Run(ctx)
	}()

	if s.cfg.AutoStart {
		s.loop.SetEnabled(true)
	}

	s.cancel = cancel
	s.released = make(chan struct{})
	s.mounted = true
	s.mountedAt = time.Now()
	s.logger.Info("station: mounted", "direction", s.cfg.Direction.String(), "url", s.cfg.URL, "auto_start", s.cfg.AutoStart)
	return nil
}

// Unmount stops the loop and releases the stream. In-flight matches finish
// first. Safe to call more than once; later calls wait for the first to
// finish. Status stays available while unmounting.
func (s *Station) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.unmounted = true
		released := s.released
		s.mu.Unlock()
		if released != nil {
			<-released
		}
		return
	}
	s.mounted = false
	s.unmounted = true
	cancel, released := s.cancel, s.released
	s.mu.Unlock()

	s.logger.Info("station: unmounting")
	cancel()
	s.wg.Wait()
	if err := s.source.Close(); err != nil {
		s.logger.Warn("station: stream close", "error", err)
	}
	if closer, ok := s.detector.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("station: detector close", "error", err)
		}
	}
	close(released)
	s.logger.Info("station: unmounted")
}

// Start enables the capture loop. It reports whether the state changed.
func (s *Station) Start() bool { return s.loop.SetEnabled(true) }

// Stop disables the capture loop without cancelling an in-flight match.
func (s *Station) Stop() bool { return s.loop.SetEnabled(false) }

// Status returns a snapshot of the station.
func (s *Station) Status() Status {
	s.mu.Lock()
	mounted, mountedAt := s.mounted, s.mountedAt
	s.mu.Unlock()

	return Status{
		Name:      s.cfg.Name,
		Direction: s.cfg.Direction,
		URL:       s.cfg.URL,
		Mounted:   mounted,
		MountedAt: mountedAt,
		Loop:      s.loop.Status(),
		Stream:    s.source.Stats(),
		Listeners: s.broadcaster.ListenerCount(),
	}
}

// WaitPlaying blocks until the stream delivers its first frame or ctx ends.
func (s *Station) WaitPlaying(ctx context.Context) error {
	return s.source.WaitPlaying(ctx)
}

// Snapshot returns the newest frame as JPEG.
func (s *Station) Snapshot() ([]byte, error) {
	frame, ok := s.source.Latest()
	if !ok {
		return nil, ErrNotPlaying
	}
	data, err := matcher.EncodeFrame(frame.Image, constants.MaxImageSize, constants.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}
