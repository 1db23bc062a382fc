// Package stream binds a live video stream to an in-memory "surface": a
// background reader keeps the newest decoded frame available for sampling.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Errors returned by Source.
var (
	ErrAlreadyAttached = errors.New("stream already attached")
	ErrClosed          = errors.New("stream closed")
	ErrNotPlaying      = errors.New("stream not playing yet")
)

// stopTimeout bounds how long Close waits for the reader goroutine.
const stopTimeout = constants.StreamStopTimeout

// Source is a single live-stream attachment. Attach starts one background
// reader; Close stops it. A Source is attached at most once.
type Source struct {
	url       string
	open      Opener
	reconnect ReconnectConfig
	logger    *slog.Logger

	// single-slot mailbox: newer frames overwrite older ones
	mu        sync.Mutex
	latest    *Frame
	sampled   bool
	lastError string
	seq       uint64

	playing     chan struct{}
	playingOnce sync.Once

	lifecycle sync.Mutex
	attached  bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}

	framesDecoded     atomic.Uint64
	framesOverwritten atomic.Uint64
	reconnects        atomic.Uint64
}

// Option configures a Source.
type Option func(*Source)

// WithReconnect overrides the reconnect backoff.
func WithReconnect(cfg ReconnectConfig) Option {
	return func(s *Source) { s.reconnect = cfg }
}

// WithLogger sets the logger used for playback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// NewSource creates an unattached source for url.
func NewSource(url string, open Opener, opts ...Option) *Source {
	s := &Source{
		url:       url,
		open:      open,
		reconnect: DefaultReconnectConfig(),
		logger:    slog.Default(),
		playing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach starts the background reader. It returns immediately; playback
// begins once the first frame decodes (see WaitPlaying).
func (s *Source) Attach(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.attached {
		return ErrAlreadyAttached
	}
	if s.url == "" {
		return fmt.Errorf("stream: URL is required")
	}
	if s.open == nil {
		return fmt.Errorf("stream: no opener configured")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.attached = true

	s.logger.Info("stream: attaching", "url", s.url)

	go s.run(ctx)
	return nil
}

// Close stops the reader and waits for it to exit. Safe to call multiple
// times and on a source that was never attached.
func (s *Source) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if !s.attached {
		return nil
	}

	s.cancel()
	select {
	case <-s.done:
		s.logger.Info("stream: detached", "url", s.url)
		return nil
	case <-time.After(stopTimeout):
		return fmt.Errorf("stream: reader did not stop within %v", stopTimeout)
	}
}

// run is the reader goroutine: open, read until failure, back off, reopen.
func (s *Source) run(ctx context.Context) {
	defer close(s.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		delivered, err := s.playOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if delivered {
			attempt = 0
		}
		attempt++
		s.reconnects.Add(1)
		s.setError(err)

		delay := s.reconnect.backoff(attempt)
		s.logger.Warn("stream: playback failed, reconnecting",
			"url", s.url,
			"error", err,
			"attempt", attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// playOnce opens the stream and reads frames until an error. It reports
// whether at least one frame was delivered.
func (s *Source) playOnce(ctx context.Context) (bool, error) {
	reader, err := s.open(ctx, s.url)
	if err != nil {
		return false, fmt.Errorf("open: %w", err)
	}

	// closing the reader on detach unblocks a Read that ignores ctx
	closeReader := sync.OnceFunc(func() {
		if err := reader.Close(); err != nil {
			s.logger.Debug("stream: close reader", "url", s.url, "error", err)
		}
	})
	defer closeReader()
	stop := context.AfterFunc(ctx, closeReader)
	defer stop()

	delivered := false
	for ctx.Err() == nil {
		img, err := reader.Read()
		if err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}
		if img == nil || img.Bounds().Empty() {
			continue
		}
		s.publish(img)
		delivered = true
	}
	return delivered, nil
}

// publish overwrites the mailbox with a new frame.
func (s *Source) publish(img image.Image) {
	s.mu.Lock()
	if s.latest != nil && !s.sampled {
		s.framesOverwritten.Add(1)
	}
	s.seq++
	s.latest = &Frame{Seq: s.seq, At: time.Now(), Image: img}
	s.sampled = false
	s.lastError = ""
	s.mu.Unlock()

	s.framesDecoded.Add(1)
	s.playingOnce.Do(func() {
		s.logger.Info("stream: playing", "url", s.url,
			"resolution", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()))
		close(s.playing)
	})
}

func (s *Source) setError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// Latest returns the newest decoded frame. ok is false before playback starts.
func (s *Source) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Frame{}, false
	}
	s.sampled = true
	return *s.latest, true
}

// Playing reports whether at least one frame has been decoded.
func (s *Source) Playing() bool {
	select {
	case <-s.playing:
		return true
	default:
		return false
	}
}

// WaitPlaying blocks until the first frame decodes or ctx ends.
func (s *Source) WaitPlaying(ctx context.Context) error {
	select {
	case <-s.playing:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current stream statistics.
func (s *Source) Stats() Stats {
	st := Stats{
		URL:               s.url,
		Playing:           s.Playing(),
		FramesDecoded:     s.framesDecoded.Load(),
		FramesOverwritten: s.framesOverwritten.Load(),
		Reconnects:        s.reconnects.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.LastError = s.lastError
	if s.latest != nil {
		st.LastFrameAt = s.latest.At
		b := s.latest.Image.Bounds()
		st.Resolution = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
	}
	return st
}
