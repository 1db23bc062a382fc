package stream

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeReader yields frames from a channel; a closed channel means EOF.
type fakeReader struct {
	ctx    context.Context
	frames chan image.Image
	closed atomic.Bool
}

func (r *fakeReader) Read() (image.Image, error) {
	select {
	case img, ok := <-r.frames:
		if !ok {
			return nil, io.EOF
		}
		return img, nil
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

func (r *fakeReader) Close() error {
	r.closed.Store(true)
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	readers []*fakeReader
	opens   atomic.Int32
	failN   int32
	next    chan *fakeReader
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{next: make(chan *fakeReader, 8)}
}

func (o *fakeOpener) open(ctx context.Context, url string) (Reader, error) {
	n := o.opens.Add(1)
	if n <= o.failN {
		return nil, errors.New("connection refused")
	}
	r := &fakeReader{ctx: ctx, frames: make(chan image.Image, 16)}
	o.mu.Lock()
	o.readers = append(o.readers, r)
	o.mu.Unlock()
	o.next <- r
	return r, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastReconnect() ReconnectConfig {
	return ReconnectConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func waitReader(t *testing.T, o *fakeOpener) *fakeReader {
	t.Helper()
	select {
	case r := <-o.next:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("opener was not called")
		return nil
	}
}

func TestSource_LatestBeforePlaying(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("http://cam/stream.m3u8", o.open, WithLogger(quietLogger()))

	if _, ok := s.Latest(); ok {
		t.Error("expected no frame before attach")
	}
	if s.Playing() {
		t.Error("expected not playing before attach")
	}
}

func TestSource_DeliversNewestFrame(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("http://cam/stream.m3u8", o.open,
		WithLogger(quietLogger()), WithReconnect(fastReconnect()))

	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer s.Close()

	r := waitReader(t, o)
	r.frames <- testImage(320, 240)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitPlaying(ctx); err != nil {
		t.Fatalf("WaitPlaying failed: %v", err)
	}

	f, ok := s.Latest()
	if !ok {
		t.Fatal("expected a frame after playing")
	}
	if f.Seq != 1 {
		t.Errorf("expected seq 1, got %d", f.Seq)
	}

	r.frames <- testImage(640, 480)
	deadline := time.Now().Add(2 * time.Second)
	for {
		f, _ = s.Latest()
		if f.Seq == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if f.Image.Bounds().Dx() != 640 {
		t.Errorf("expected newest frame width 640, got %d", f.Image.Bounds().Dx())
	}

	stats := s.Stats()
	if !stats.Playing {
		t.Error("expected stats to report playing")
	}
	if stats.FramesDecoded != 2 {
		t.Errorf("expected 2 decoded frames, got %d", stats.FramesDecoded)
	}
	if stats.Resolution != "640x480" {
		t.Errorf("expected resolution 640x480, got %q", stats.Resolution)
	}
}

func TestSource_CountsOverwrittenFrames(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("rtsp://cam", o.open, WithLogger(quietLogger()))

	s.publish(testImage(10, 10))
	s.publish(testImage(10, 10))
	s.publish(testImage(10, 10))
	if got := s.Stats().FramesOverwritten; got != 2 {
		t.Errorf("expected 2 overwritten frames, got %d", got)
	}

	s.Latest()
	s.publish(testImage(10, 10))
	if got := s.Stats().FramesOverwritten; got != 2 {
		t.Errorf("sampled frame must not count as overwritten, got %d", got)
	}
}

func TestSource_SkipsEmptyFrames(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("rtsp://cam", o.open,
		WithLogger(quietLogger()), WithReconnect(fastReconnect()))
	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer s.Close()

	r := waitReader(t, o)
	r.frames <- image.NewRGBA(image.Rectangle{})
	r.frames <- testImage(8, 8)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitPlaying(ctx); err != nil {
		t.Fatalf("WaitPlaying failed: %v", err)
	}
	f, _ := s.Latest()
	if f.Seq != 1 || f.Image.Bounds().Dx() != 8 {
		t.Errorf("expected only the non-empty frame, got seq %d", f.Seq)
	}
}

func TestSource_ReconnectsAfterFailure(t *testing.T) {
	o := newFakeOpener()
	o.failN = 2
	s := NewSource("rtsp://cam", o.open,
		WithLogger(quietLogger()), WithReconnect(fastReconnect()))
	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer s.Close()

	r := waitReader(t, o)
	if got := o.opens.Load(); got != 3 {
		t.Errorf("expected 3 open attempts, got %d", got)
	}

	// end of stream triggers another reconnect
	close(r.frames)
	r2 := waitReader(t, o)
	if !r.closed.Load() {
		t.Error("expected first reader to be closed")
	}
	r2.frames <- testImage(4, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitPlaying(ctx); err != nil {
		t.Fatalf("WaitPlaying failed: %v", err)
	}
	if got := s.Stats().Reconnects; got < 3 {
		t.Errorf("expected at least 3 reconnects, got %d", got)
	}
}

func TestSource_AttachTwice(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("rtsp://cam", o.open, WithLogger(quietLogger()))
	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer s.Close()

	if err := s.Attach(context.Background()); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestSource_AttachAfterClose(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("rtsp://cam", o.open, WithLogger(quietLogger()))
	if err := s.Close(); err != nil {
		t.Fatalf("Close on unattached source failed: %v", err)
	}
	if err := s.Attach(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSource_AttachValidation(t *testing.T) {
	if err := NewSource("", newFakeOpener().open).Attach(context.Background()); err == nil {
		t.Error("expected error for empty URL")
	}
	if err := NewSource("rtsp://cam", nil).Attach(context.Background()); err == nil {
		t.Error("expected error for missing opener")
	}
}

func TestSource_CloseIdempotent(t *testing.T) {
	o := newFakeOpener()
	s := NewSource("rtsp://cam", o.open,
		WithLogger(quietLogger()), WithReconnect(fastReconnect()))
	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	r := waitReader(t, o)
	r.frames <- testImage(4, 4)

	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

// stalledReader delivers one frame, then blocks until Close, ignoring any
// context like a decoder stuck on a dead feed.
type stalledReader struct {
	served  atomic.Bool
	once    sync.Once
	unblock chan struct{}
}

func (r *stalledReader) Read() (image.Image, error) {
	if !r.served.Swap(true) {
		return testImage(8, 8), nil
	}
	<-r.unblock
	return nil, io.ErrClosedPipe
}

func (r *stalledReader) Close() error {
	r.once.Do(func() { close(r.unblock) })
	return nil
}

func (r *stalledReader) isClosed() bool {
	select {
	case <-r.unblock:
		return true
	default:
		return false
	}
}

func TestSource_CloseReleasesStalledReader(t *testing.T) {
	reader := &stalledReader{unblock: make(chan struct{})}
	open := func(ctx context.Context, url string) (Reader, error) { return reader, nil }
	s := NewSource("rtsp://cam", open, WithLogger(quietLogger()), WithReconnect(fastReconnect()))
	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitPlaying(ctx); err != nil {
		t.Fatalf("WaitPlaying failed: %v", err)
	}

	start := time.Now()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= stopTimeout {
		t.Errorf("Close took %v, expected well under %v", elapsed, stopTimeout)
	}
	if !reader.isClosed() {
		t.Error("expected the stalled reader to be closed")
	}
	select {
	case <-s.done:
	default:
		t.Error("reader goroutine still running after Close returned")
	}
}

func TestSource_WaitPlayingCancelled(t *testing.T) {
	s := NewSource("rtsp://cam", newFakeOpener().open)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WaitPlaying(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReconnectConfig_Backoff(t *testing.T) {
	cfg := ReconnectConfig{InitialDelay: time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := cfg.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
