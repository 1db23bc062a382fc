// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for notification subscriber channels
	EventChannelBuffer = 100

	// RecentNotifications is how many alerts a station replays to new subscribers
	RecentNotifications = 20
)

// Web server constants
const (
	// DefaultWebPort is the port the control API listens on
	DefaultWebPort = 8080

	// DefaultWebHost is the interface the control API binds to
	DefaultWebHost = "0.0.0.0"

	// SSEKeepAliveInterval is how often an idle SSE stream gets a comment line
	SSEKeepAliveInterval = 15 * time.Second

	// ShutdownTimeout bounds graceful shutdown of the server and stations
	ShutdownTimeout = 30 * time.Second
)
