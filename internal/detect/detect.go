// Package detect wraps a face detector with asynchronous model loading and
// error-swallowing detection.
package detect

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"
)

// Detection describes the faces found in a frame.
type Detection struct {
	// Box is the largest face found
	Box image.Rectangle `json:"box"`
	// Faces is the total number of faces found
	Faces int `json:"faces"`
}

// Detector finds faces in still images.
type Detector interface {
	// Load prepares the detection models. It may be slow.
	Load(ctx context.Context) error
	// Detect returns nil when no face is present.
	Detect(ctx context.Context, img image.Image) (*Detection, error)
}

// Retry bounds for model loading.
const (
	loadRetryInitial = time.Second
	loadRetryMax     = time.Minute
)

// Gate guards a Detector until its models are loaded and hides detection
// failures from callers.
type Gate struct {
	detector Detector
	logger   *slog.Logger

	initOnce sync.Once
	ready    chan struct{}

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewGate creates a gate over detector.
func NewGate(detector Detector, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		detector:     detector,
		logger:       logger,
		ready:        make(chan struct{}),
		retryInitial: loadRetryInitial,
		retryMax:     loadRetryMax,
	}
}

// Init starts loading the models in the background. Only the first call has
// an effect. A failed load is retried with backoff until ctx ends.
func (g *Gate) Init(ctx context.Context) {
	g.initOnce.Do(func() {
		go g.load(ctx)
	})
}

func (g *Gate) load(ctx context.Context) {
	delay := g.retryInitial
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := g.detector.Load(ctx)
		if err == nil {
			g.logger.Info("detect: models loaded", "duration", time.Since(start), "attempt", attempt)
			close(g.ready)
			return
		}
		if ctx.Err() != nil {
			return
		}

		g.logger.Error("detect: model load failed", "error", err, "attempt", attempt, "retry_in", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, g.retryMax)
	}
}

// Ready is closed once the models have loaded.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// IsReady reports whether the models have loaded.
func (g *Gate) IsReady() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Detect returns the detection for img, or nil when there is no face, the
// models are not loaded yet, or the detector failed.
func (g *Gate) Detect(ctx context.Context, img image.Image) *Detection {
	if img == nil || !g.IsReady() {
		return nil
	}
	det, err := g.detector.Detect(ctx, img)
	if err != nil {
		g.logger.Warn("detect: detection failed", "error", err)
		return nil
	}
	if det == nil || det.Faces == 0 || det.Box.Empty() {
		return nil
	}
	return det
}
