package stream

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ReconnectConfig contains configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	InitialDelay time.Duration // first retry delay (default: 1 second)
	MaxDelay     time.Duration // retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay: constants.ReconnectInitialDelay,
		MaxDelay:     constants.ReconnectMaxDelay,
	}
}

// backoff calculates the delay before retry attempt n (1-based):
// InitialDelay * 2^(n-1), capped at MaxDelay.
func (c ReconnectConfig) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		return c.MaxDelay
	}
	delay := c.InitialDelay * time.Duration(1<<uint(attempt-1))
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}
	return delay
}
