// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Capture loop constants
const (
	// DefaultTickInterval is how often an armed station samples a frame
	DefaultTickInterval = 1 * time.Second

	// DefaultSettleDelay is the pause after a classified match before the
	// station re-arms. Not a rate-limit contract of the matcher.
	DefaultSettleDelay = 1 * time.Second
)

// Matcher constants
const (
	// DefaultMatcherURL is the base URL of the remote recognition service
	DefaultMatcherURL = "http://localhost:8000"

	// DefaultEntryMatchPath and DefaultExitMatchPath are the per-direction endpoints
	DefaultEntryMatchPath = "/entry_match"
	DefaultExitMatchPath  = "/exit_match"

	// DefaultMatchTimeout bounds a single dispatch; there is no retry
	DefaultMatchTimeout = 10 * time.Second

	// MaxImageSize is the maximum dimension (width or height) of a dispatched frame
	MaxImageSize = 1280

	// JPEGQuality is the encoder quality for dispatched frames
	JPEGQuality = 85
)

// Detection constants
const (
	// DefaultMinFaceSize is the smallest face edge (pixels) the detector reports
	DefaultMinFaceSize = 80

	// DefaultCascadeFile is the Haar cascade used for presence detection
	DefaultCascadeFile = "haarcascade_frontalface_default.xml"
)

// Stream constants
const (
	// ReconnectInitialDelay is the first backoff step after a stream failure
	ReconnectInitialDelay = 1 * time.Second

	// ReconnectMaxDelay caps the exponential backoff
	ReconnectMaxDelay = 30 * time.Second

	// StreamStopTimeout bounds how long detaching waits for the reader goroutine
	StreamStopTimeout = 3 * time.Second

	// VideoOpenTimeout and VideoReadTimeout bound a single decoder call.
	// Both must stay below StreamStopTimeout.
	VideoOpenTimeout = 2 * time.Second
	VideoReadTimeout = 2 * time.Second
)
