// Package capture runs the per-station sampling loop: once per interval it
// checks for a face in the newest frame and, if one is present, dispatches
// the frame to the matcher. At most one attempt is outstanding at a time.
package capture

import (
	"context"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/detect"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

// State is the loop's externally visible state.
type State string

const (
	StateIdle  State = "idle"
	StateArmed State = "armed"
	StateBusy  State = "busy"
)

// FrameSource provides the newest decoded frame.
type FrameSource interface {
	Latest() (stream.Frame, bool)
}

// FaceDetector reports whether a frame contains a face.
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) *detect.Detection
}

// Dispatcher sends a frame to the remote matcher.
type Dispatcher interface {
	Send(ctx context.Context, frame image.Image, dir attendance.Direction) (*attendance.MatchResponse, error)
}

// Config holds loop parameters.
type Config struct {
	Station     string
	Direction   attendance.Direction
	Interval    time.Duration
	SettleDelay time.Duration
}

// Loop is the capture state machine for one station.
type Loop struct {
	cfg        Config
	frames     FrameSource
	faces      FaceDetector
	dispatcher Dispatcher
	sink       notify.Sink
	logger     *slog.Logger

	mu          sync.Mutex
	modelsReady bool
	enabled     bool
	busy        bool
	stats       Stats

	wg sync.WaitGroup
}

// Stats counts loop activity.
type Stats struct {
	Ticks       uint64            `json:"ticks"`
	SkippedBusy uint64            `json:"skipped_busy"`
	SkippedIdle uint64            `json:"skipped_idle"`
	NoFrame     uint64            `json:"no_frame"`
	Detections  uint64            `json:"detections"`
	Dispatches  uint64            `json:"dispatches"`
	Outcomes    map[string]uint64 `json:"outcomes"`
	LastOutcome *LastOutcome      `json:"last_outcome,omitempty"`
}

// LastOutcome records the most recent classified dispatch.
type LastOutcome struct {
	Kind     attendance.OutcomeKind `json:"kind"`
	Name     string                 `json:"name,omitempty"`
	Duration time.Duration          `json:"duration_ns"`
	At       time.Time              `json:"at"`
}

// Status is a snapshot of the loop.
type Status struct {
	Station     string               `json:"station"`
	Direction   attendance.Direction `json:"direction"`
	State       State                `json:"state"`
	ModelsReady bool                 `json:"models_ready"`
	Enabled     bool                 `json:"enabled"`
	Busy        bool                 `json:"busy"`
	Stats       Stats                `json:"stats"`
}

// NewLoop creates a disabled loop. sink may be nil.
func NewLoop(cfg Config, frames FrameSource, faces FaceDetector, dispatcher Dispatcher, sink notify.Sink, logger *slog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultTickInterval
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.SinkFunc(func(notify.Notification) {})
	}
	return &Loop{
		cfg:        cfg,
		frames:     frames,
		faces:      faces,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger.With("station", cfg.Station, "direction", cfg.Direction.String()),
		stats:      Stats{Outcomes: make(map[string]uint64)},
	}
}

// Run ticks until ctx ends, then waits for any in-flight attempt.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	defer l.wg.Wait()

	l.logger.Info("capture: loop started", "interval", l.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("capture: loop stopped")
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// MarkModelsReady records that the detector is loaded. Only the first call
// has an effect.
func (l *Loop) MarkModelsReady() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.modelsReady {
		l.modelsReady = true
		l.logger.Info("capture: models ready")
	}
}

// SetEnabled toggles sampling. Disabling never cancels an in-flight match.
// It returns whether the value changed.
func (l *Loop) SetEnabled(enabled bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enabled == enabled {
		return false
	}
	l.enabled = enabled
	l.logger.Info("capture: loop toggled", "enabled", enabled)
	return true
}

// Enabled reports the toggle value.
func (l *Loop) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// State returns Idle, Armed or Busy.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Loop) stateLocked() State {
	switch {
	case !l.modelsReady || !l.enabled:
		return StateIdle
	case l.busy:
		return StateBusy
	default:
		return StateArmed
	}
}

// Status returns a snapshot of state and counters.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := l.stats
	stats.Outcomes = make(map[string]uint64, len(l.stats.Outcomes))
	for k, v := range l.stats.Outcomes {
		stats.Outcomes[k] = v
	}
	if l.stats.LastOutcome != nil {
		last := *l.stats.LastOutcome
		stats.LastOutcome = &last
	}

	return Status{
		Station:     l.cfg.Station,
		Direction:   l.cfg.Direction,
		State:       l.stateLocked(),
		ModelsReady: l.modelsReady,
		Enabled:     l.enabled,
		Busy:        l.busy,
		Stats:       stats,
	}
}

// tick starts one attempt if the loop is armed. It reports whether an
// attempt was started.
func (l *Loop) tick(ctx context.Context) bool {
	if !l.tryAcquire() {
		return false
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.attempt(ctx)
	}()
	return true
}

// tryAcquire sets busy if the loop is ready, enabled and not busy.
func (l *Loop) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.Ticks++
	if !l.modelsReady || !l.enabled {
		l.stats.SkippedIdle++
		return false
	}
	if l.busy {
		l.stats.SkippedBusy++
		return false
	}
	l.busy = true
	return true
}

func (l *Loop) release() {
	l.mu.Lock()
	l.busy = false
	l.mu.Unlock()
}

// attempt runs with busy held and always releases it. A panic in a
// collaborator is logged; once the frame was dispatched it counts as an
// unexpected outcome.
func (l *Loop) attempt(ctx context.Context) {
	defer l.release()

	dispatched := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		l.logger.Error("capture: attempt panicked", "panic", r, "dispatched", dispatched, "stack", string(debug.Stack()))
		if dispatched {
			l.finish(attendance.Unexpected(), 0)
		}
	}()

	frame, ok := l.frames.Latest()
	if !ok {
		l.count(func(s *Stats) { s.NoFrame++ })
		return
	}

	det := l.faces.Detect(ctx, frame.Image)
	if det == nil {
		return
	}
	l.count(func(s *Stats) {
		s.Detections++
		s.Dispatches++
	})
	l.logger.Debug("capture: face detected", "seq", frame.Seq, "box", det.Box.String(), "faces", det.Faces)

	// the match completes even if the loop is disabled or unmounted meanwhile
	dispatched = true
	start := time.Now()
	resp, err := l.dispatcher.Send(context.WithoutCancel(ctx), frame.Image, l.cfg.Direction)
	outcome := attendance.Classify(l.cfg.Direction, resp, err)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		l.logger.Error("capture: match request failed", "error", err, "duration", elapsed)
	case resp == nil:
		l.logger.Error("capture: matcher returned no response", "duration", elapsed)
	default:
		if attendance.ConflictMismatch(l.cfg.Direction, resp) {
			l.logger.Warn("capture: conflict status does not match station direction", "status", resp.Status, "outcome", outcome.Kind.String())
		}
		l.logger.Info("capture: match classified", "outcome", outcome.Kind.String(), "status", resp.Status, "duration", elapsed)
	}

	// a later panic must not report a second outcome
	dispatched = false
	l.finish(outcome, elapsed)

	l.settle(ctx)
}

// finish records an outcome and notifies the sink.
func (l *Loop) finish(outcome attendance.Outcome, elapsed time.Duration) {
	l.count(func(s *Stats) {
		s.Outcomes[outcome.Kind.String()]++
		s.LastOutcome = &LastOutcome{Kind: outcome.Kind, Name: outcome.Name, Duration: elapsed, At: time.Now()}
	})
	l.notify(notify.Render(l.cfg.Station, l.cfg.Direction, outcome))
}

// notify delivers n, dropping it if the sink panics.
func (l *Loop) notify(n notify.Notification) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("capture: notification sink panicked", "panic", r, "kind", n.Kind.String())
		}
	}()
	l.sink.Notify(n)
}

// settle waits for the settle delay, cut short on unmount.
func (l *Loop) settle(ctx context.Context) {
	if l.cfg.SettleDelay <= 0 {
		return
	}
	timer := time.NewTimer(l.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (l *Loop) count(update func(*Stats)) {
	l.mu.Lock()
	update(&l.stats)
	l.mu.Unlock()
}
