// Package vision adapts OpenCV (gocv) to the stream and detect packages.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

// ErrEmptyFrame is returned when the capture yields no frame.
var ErrEmptyFrame = errors.New("empty frame")

// ErrReaderClosed is returned by Read after Close.
var ErrReaderClosed = errors.New("video reader closed")

// VideoReader decodes frames from an HLS manifest, RTSP URL or file.
//
// Close can run while Read is inside OpenCV. The capture is then released by
// Read once the decoder call returns, which the read timeout bounds.
type VideoReader struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat

	mu      sync.Mutex
	reading bool
	closed  bool
}

// OpenVideo implements stream.Opener. Open and read are bounded by
// VideoOpenTimeout and VideoReadTimeout so a stalled feed cannot pin the
// reader goroutine.
func OpenVideo(ctx context.Context, url string) (stream.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// params are property/value pairs
	params := []gocv.VideoCaptureProperties{
		gocv.VideoCaptureOpenTimeoutMsec, gocv.VideoCaptureProperties(constants.VideoOpenTimeout.Milliseconds()),
		gocv.VideoCaptureReadTimeoutMsec, gocv.VideoCaptureProperties(constants.VideoReadTimeout.Milliseconds()),
	}
	capture, err := gocv.VideoCaptureFileWithAPIParams(url, gocv.VideoCaptureAny, params)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", url, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", url)
	}
	// keep only the newest frame in the decoder queue
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	return &VideoReader{capture: capture, mat: gocv.NewMat()}, nil
}

// Read blocks until the next frame decodes or the read timeout expires.
func (r *VideoReader) Read() (image.Image, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrReaderClosed
	}
	r.reading = true
	r.mu.Unlock()

	img, err := r.decode()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reading = false
	if r.closed {
		r.release()
		return nil, ErrReaderClosed
	}
	return img, err
}

func (r *VideoReader) decode() (image.Image, error) {
	if ok := r.capture.Read(&r.mat); !ok {
		return nil, fmt.Errorf("read frame: %w", ErrEmptyFrame)
	}
	if r.mat.Empty() {
		return nil, ErrEmptyFrame
	}
	img, err := r.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the capture and the frame buffer, or hands the release to
// an in-progress Read. It never blocks on the decoder.
func (r *VideoReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if !r.reading {
		r.release()
	}
	return nil
}

// release must be called with mu held, exactly once.
func (r *VideoReader) release() {
	r.mat.Close()
	// VideoCapture.Close always reports nil
	_ = r.capture.Close()
}
