package stream

import (
	"context"
	"image"
	"time"
)

// Reader decodes frames from an opened live stream. Read blocks until the
// next frame is decoded and returns a freshly allocated image each time, so a
// returned frame may be shared without copying. Read returns an error (io.EOF
// at end of stream) when the stream can no longer produce frames. Close may be
// called while a Read is blocked and must make that Read return.
type Reader interface {
	Read() (image.Image, error)
	Close() error
}

// Opener opens a stream address (HLS manifest, RTSP URL, file path).
type Opener func(ctx context.Context, url string) (Reader, error)

// Frame is one decoded frame with metadata.
type Frame struct {
	// Seq is the monotonic sequence number (starts at 1)
	Seq uint64
	// At is when the frame was decoded
	At time.Time
	// Image is the decoded picture; must not be modified
	Image image.Image
}

// Stats contains current stream statistics.
type Stats struct {
	URL               string    `json:"url"`
	Playing           bool      `json:"playing"`
	FramesDecoded     uint64    `json:"frames_decoded"`
	FramesOverwritten uint64    `json:"frames_overwritten"`
	Reconnects        uint64    `json:"reconnects"`
	LastFrameAt       time.Time `json:"last_frame_at,omitzero"`
	Resolution        string    `json:"resolution,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}
